package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VIEWING_FEE", "")
	t.Setenv("PAYMENT_PROVIDER_TIMEOUT", "")

	cfg := Load()
	assert.Equal(t, int64(2500), cfg.Viewing.Fee)
	assert.Equal(t, 30*time.Second, cfg.Viewing.ProviderTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Viewing.DisputeWindow)
	assert.Equal(t, 2, cfg.Viewing.MaxRetries)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIEWING_FEE", "4200")
	t.Setenv("VIEWING_CURRENCY", "ngn")
	t.Setenv("PAYMENT_PROVIDER_TIMEOUT", "5s")
	t.Setenv("NOTIFIER", "AMQP")
	t.Setenv("ENV", "production")

	cfg := Load()
	assert.Equal(t, int64(4200), cfg.Viewing.Fee)
	assert.Equal(t, "NGN", cfg.Viewing.Currency)
	assert.Equal(t, 5*time.Second, cfg.Viewing.ProviderTimeout)
	assert.Equal(t, "amqp", cfg.Notifier)
	assert.True(t, cfg.IsProduction())
}

func TestGetDurationEnvInvalid(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, GetDurationEnv("SOME_TIMEOUT", time.Minute))
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")

	t.Setenv("ENV", "development")
	assert.NoError(t, Load().Validate())

	t.Setenv("ENV", "production")
	err := Load().Validate()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-long-random-secret")
	assert.NoError(t, Load().Validate())

	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	assert.ErrorContains(t, Load().Validate(), "STRIPE_WEBHOOK_SECRET")
}
