package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"be-auth/internal/config"
	"be-auth/internal/domain"
	"be-auth/internal/middleware"
	"be-auth/internal/oauth"
	"be-auth/internal/service"
	"be-auth/internal/service/auth"
	"be-auth/internal/service/otp"
	"be-auth/pkg/errors"
	"be-auth/pkg/logger"
)

// AuthHandler handles login, refresh and token introspection HTTP requests
type AuthHandler struct {
	authService service.AuthService
	otpManager  *otp.Manager
	logger      *logger.Logger
	config      *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService service.AuthService, otpManager *otp.Manager, logger *logger.Logger, config *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		otpManager:  otpManager,
		logger:      logger,
		config:      config,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AuthResponse wraps a successful login or refresh result
type AuthResponse struct {
	Success bool               `json:"success"`
	Data    *domain.AuthResult `json:"data,omitempty"`
	Error   *ErrorResponse     `json:"error,omitempty"`
}

// OtpRequestResponse represents the response for an OTP code request
type OtpRequestResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`

	// DebugCode is only populated in development environments
	DebugCode string `json:"debug_code,omitempty"`
}

type oauthLoginRequest struct {
	Provider string          `json:"provider"`
	Code     string          `json:"code,omitempty"`
	IDToken  string          `json:"id_token,omitempty"`
	User     json.RawMessage `json:"user,omitempty"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code,omitempty"`
}

type guestLoginRequest struct {
	DeviceID string `json:"device_id,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthorizationURL handles GET /api/auth/{provider}/url
func (h *AuthHandler) AuthorizationURL(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProvider(chi.URLParam(r, "provider"))
	if !ok {
		h.sendError(w, http.StatusBadRequest, "validation", "Unknown provider")
		return
	}

	url, err := h.authService.AuthorizationURL(provider, r.URL.Query().Get("state"))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    map[string]string{"url": url},
	})
}

// OAuthLogin handles POST /api/auth/oauth
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req oauthLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}

	provider, ok := parseProvider(req.Provider)
	if !ok {
		h.sendError(w, http.StatusBadRequest, "validation", "Unknown provider")
		return
	}
	if req.Code == "" && req.IDToken == "" {
		h.sendError(w, http.StatusBadRequest, "validation", "Either code or id_token is required")
		return
	}

	result, err := h.authService.LoginWithOAuth(r.Context(), service.OAuthLoginInput{
		Provider: provider,
		Code:     req.Code,
		IDToken:  req.IDToken,
		User:     req.User,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, &AuthResponse{Success: true, Data: result})
}

// RequestOtp handles POST /api/auth/otp/request
func (h *AuthHandler) RequestOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}
	if !validEmail(req.Email) {
		h.sendError(w, http.StatusBadRequest, "validation", "A valid email is required")
		return
	}

	code, ok := h.otpManager.Generate(r.Context(), req.Email)
	if !ok {
		h.sendError(w, http.StatusTooManyRequests, "rate_limit", "Too many code requests; try again later")
		return
	}

	// Delivery (email send) happens out of band; in development the code is
	// returned directly so the flow can be exercised without a mail sink.
	resp := &OtpRequestResponse{Success: true, Message: "Verification code sent"}
	if h.config.Environment == "development" {
		resp.DebugCode = code
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// VerifyOtp handles POST /api/auth/otp/verify
func (h *AuthHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}
	if !validEmail(req.Email) || req.Code == "" {
		h.sendError(w, http.StatusBadRequest, "validation", "Email and code are required")
		return
	}

	if !h.otpManager.Verify(r.Context(), req.Email, req.Code) {
		h.sendError(w, http.StatusUnauthorized, "authentication", "Invalid or expired code")
		return
	}

	result, err := h.authService.LoginWithEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, &AuthResponse{Success: true, Data: result})
}

// GuestLogin handles POST /api/auth/guest
func (h *AuthHandler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	var req guestLoginRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.sendError(w, http.StatusBadRequest, "validation", "Invalid request body")
			return
		}
	}

	result, err := h.authService.LoginAsGuest(r.Context(), req.DeviceID)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, &AuthResponse{Success: true, Data: result})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "validation", "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		h.sendError(w, http.StatusBadRequest, "validation", "refresh_token is required")
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, &AuthResponse{Success: true, Data: result})
}

// Me handles GET /api/auth/me; requires the Auth middleware
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "authentication", "Not authenticated")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    user,
	})
}

func parseProvider(raw string) (domain.Provider, bool) {
	switch domain.Provider(strings.ToUpper(raw)) {
	case domain.ProviderGoogle:
		return domain.ProviderGoogle, true
	case domain.ProviderApple:
		return domain.ProviderApple, true
	default:
		return "", false
	}
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

// sendServiceError maps service-layer failures onto HTTP responses. Expected
// failures keep precise statuses; everything else is an internal error.
func (h *AuthHandler) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, auth.ErrInvalidRefreshToken):
		h.sendError(w, http.StatusUnauthorized, "authentication", "Invalid refresh token")
	case stderrors.Is(err, auth.ErrExpiredRefreshToken):
		h.sendError(w, http.StatusUnauthorized, "authentication", "Expired refresh token")
	default:
		var pErr *oauth.ProviderError
		var appErr *errors.AppError
		if stderrors.As(err, &pErr) {
			h.logger.WithError(err).Warn("Provider call failed")
			h.sendError(w, http.StatusBadGateway, "external", "Identity provider rejected the request")
			return
		}
		if stderrors.As(err, &appErr) {
			h.logger.WithError(err).Error("Request failed")
			h.sendError(w, appErr.StatusCode, string(appErr.Type), appErr.Message)
			return
		}
		h.logger.WithError(err).Error("Request failed")
		h.sendError(w, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

func (h *AuthHandler) sendError(w http.ResponseWriter, status int, errType, message string) {
	h.sendJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   &ErrorResponse{Type: errType, Message: message},
	})
}

func (h *AuthHandler) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
