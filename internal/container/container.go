package container

import (
	"be-auth/internal/config"
	"be-auth/internal/oauth"
	"be-auth/internal/repository"
	"be-auth/internal/service"
	"be-auth/internal/service/auth"
	"be-auth/internal/service/otp"
	"be-auth/internal/service/token"
	"be-auth/pkg/errors"
	"be-auth/pkg/logger"
	"be-auth/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	Repos       *repository.Repositories
	OtpManager  *otp.Manager
	Providers   *oauth.Registry
	Services    *service.Services
}

// New creates a new dependency injection container. Repositories are supplied
// by the caller so the container stays independent of the storage backend.
func New(cfg *config.Config, log *logger.Logger, repos *repository.Repositories) (*Container, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.NewConfigurationError("JWT_SECRET is required")
	}

	// Redis is optional; without it the OTP state stays in process memory
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, falling back to in-memory OTP store")
		} else {
			redisClient = client
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, using in-memory OTP store")
	}

	var otpStore otp.Store
	if redisClient != nil {
		otpStore = otp.NewRedisStore(redisClient, cfg.OtpRateWindow)
	} else {
		otpStore = otp.NewMemoryStore()
	}
	otpManager := otp.NewManager(otpStore, otp.Config{
		TTL:          cfg.OtpTTL,
		MaxAttempts:  cfg.OtpMaxAttempts,
		RateWindow:   cfg.OtpRateWindow,
		MaxPerWindow: cfg.OtpMaxPerWindow,
	}, log)

	providers, err := buildRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	codec := token.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	authService := auth.NewService(repos, providers, codec, log)

	return &Container{
		Config:      cfg,
		Logger:      log,
		RedisClient: redisClient,
		Repos:       repos,
		OtpManager:  otpManager,
		Providers:   providers,
		Services:    &service.Services{Auth: authService},
	}, nil
}

// buildRegistry wires an adapter for every provider with credentials present.
// A malformed Apple key is a deployment bug and aborts startup.
func buildRegistry(cfg *config.Config, log *logger.Logger) (*oauth.Registry, error) {
	var providers []oauth.Provider

	if cfg.HasGoogle() {
		providers = append(providers, oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, log))
		log.Info("Google OAuth provider configured")
	}

	if cfg.HasApple() {
		apple, err := oauth.NewAppleProvider(oauth.AppleConfig{
			TeamID:      cfg.AppleTeamID,
			ClientID:    cfg.AppleClientID,
			KeyID:       cfg.AppleKeyID,
			PrivateKey:  cfg.ApplePrivateKey,
			RedirectURL: cfg.AppleRedirectURL,
		}, log)
		if err != nil {
			return nil, err
		}
		providers = append(providers, apple)
		log.Info("Apple OAuth provider configured")
	}

	if len(providers) == 0 {
		log.Warn("No OAuth providers configured; only email and guest login are available")
	}

	return oauth.NewRegistry(providers...), nil
}

// GetAuthService returns the auth service
func (c *Container) GetAuthService() service.AuthService {
	return c.Services.Auth
}

// GetOtpManager returns the OTP manager
func (c *Container) GetOtpManager() *otp.Manager {
	return c.OtpManager
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetRedisClient returns the Redis client (may be nil if not configured)
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}
