package container

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"be-auth/internal/config"
	"be-auth/internal/domain"
	"be-auth/internal/repository"
	"be-auth/pkg/logger"
)

func baseConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWTSecret:   "test-secret",
		JWTIssuer:   "be-auth",
		JWTAudience: "be-auth-clients",
		JWTTTL:      time.Hour,
	}
}

func TestNew(t *testing.T) {
	log, err := logger.New("error", "development")
	require.NoError(t, err)

	repos := &repository.Repositories{}

	t.Run("missing JWT secret", func(t *testing.T) {
		cfg := baseConfig()
		cfg.JWTSecret = ""

		_, err := New(cfg, log, repos)
		require.Error(t, err, "a missing signing secret must abort startup")
	})

	t.Run("minimal configuration", func(t *testing.T) {
		c, err := New(baseConfig(), log, repos)
		require.NoError(t, err)

		assert.False(t, c.HasRedis())
		assert.NotNil(t, c.GetOtpManager())
		assert.NotNil(t, c.GetAuthService())
		assert.False(t, c.Providers.Has(domain.ProviderGoogle))
		assert.False(t, c.Providers.Has(domain.ProviderApple))
	})

	t.Run("google provider configured", func(t *testing.T) {
		cfg := baseConfig()
		cfg.GoogleClientID = "client-id"
		cfg.GoogleClientSecret = "client-secret"
		cfg.GoogleRedirectURL = "https://app.example.com/callback"

		c, err := New(cfg, log, repos)
		require.NoError(t, err)

		assert.True(t, c.Providers.Has(domain.ProviderGoogle))
		assert.False(t, c.Providers.Has(domain.ProviderApple))
	})

	t.Run("malformed apple key", func(t *testing.T) {
		cfg := baseConfig()
		cfg.AppleTeamID = "TEAM123456"
		cfg.AppleClientID = "com.example.app"
		cfg.AppleKeyID = "KEY1234567"
		cfg.ApplePrivateKey = "not a pem key"

		_, err := New(cfg, log, repos)
		require.Error(t, err, "an unparsable Apple key must abort startup")
	})

	t.Run("invalid redis URL falls back to memory store", func(t *testing.T) {
		cfg := baseConfig()
		cfg.RedisURL = "not-a-redis-url"

		c, err := New(cfg, log, repos)
		require.NoError(t, err)

		assert.False(t, c.HasRedis())
		assert.NotNil(t, c.GetOtpManager())
	})
}
