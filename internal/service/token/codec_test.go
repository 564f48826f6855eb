package token

import (
	"strings"
	"testing"
	"time"

	"be-auth/internal/domain"
)

func testUser() *domain.User {
	return &domain.User{
		ID:       "user-123",
		Email:    "somchai@example.com",
		Name:     "Somchai",
		Provider: domain.ProviderGoogle,
		Role:     domain.RoleUser,
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", "be-auth", "be-auth-clients", time.Hour)

	signed, expiresAt, err := codec.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > time.Hour {
		t.Errorf("expiresAt = %v, want about one hour out", expiresAt)
	}

	claims, ok := codec.Verify(signed)
	if !ok {
		t.Fatal("Verify() ok = false, want true")
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %s, want user-123", claims.UserID)
	}
	if claims.Sub != "user-123" {
		t.Errorf("claims.Sub = %s, want user-123", claims.Sub)
	}
	if claims.Provider != domain.ProviderGoogle {
		t.Errorf("claims.Provider = %s, want GOOGLE", claims.Provider)
	}
	if claims.Role != domain.RoleUser {
		t.Errorf("claims.Role = %s, want user", claims.Role)
	}
	if len(claims.Permissions) == 0 {
		t.Error("claims.Permissions is empty, want role permissions")
	}
}

func TestCodec_TamperedSignature(t *testing.T) {
	codec := NewCodec("test-secret", "be-auth", "be-auth-clients", time.Hour)

	signed, _, err := codec.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Flip a character in the signature segment
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d segments, want 3", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, ok := codec.Verify(tampered); ok {
		t.Error("Verify() accepted a tampered signature")
	}
}

func TestCodec_IssuerAndAudienceMismatch(t *testing.T) {
	issuing := NewCodec("test-secret", "be-auth", "be-auth-clients", time.Hour)
	signed, _, err := issuing.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	tests := []struct {
		name     string
		verifier *Codec
	}{
		{
			name:     "wrong issuer",
			verifier: NewCodec("test-secret", "someone-else", "be-auth-clients", time.Hour),
		},
		{
			name:     "wrong audience",
			verifier: NewCodec("test-secret", "be-auth", "other-clients", time.Hour),
		},
		{
			name:     "wrong secret",
			verifier: NewCodec("other-secret", "be-auth", "be-auth-clients", time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.verifier.Verify(signed); ok {
				t.Error("Verify() ok = true, want false")
			}
		})
	}
}

func TestCodec_Expiry(t *testing.T) {
	codec := NewCodec("test-secret", "be-auth", "be-auth-clients", time.Hour)

	signed, _, err := codec.Generate(testUser())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Move the verifier clock past the expiry
	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, ok := codec.Verify(signed); ok {
		t.Error("Verify() accepted an expired token")
	}
}

func TestCodec_MalformedInput(t *testing.T) {
	codec := NewCodec("test-secret", "be-auth", "be-auth-clients", time.Hour)

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, ok := codec.Verify(input); ok {
			t.Errorf("Verify(%q) ok = true, want false", input)
		}
	}
}
