package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsStripeAndPlanSettings(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", " sk_test_123 ")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc")
	t.Setenv("STRIPE_WEBHOOK_TOLERANCE_SECONDS", "120")
	t.Setenv("STRIPE_PRICE_BASIC", "price_basic")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_OWNER_RATE", "2.5")

	cfg := Load()

	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_abc", cfg.Stripe.WebhookSecret)
	assert.Equal(t, 120*time.Second, cfg.Stripe.WebhookTolerance)
	assert.Equal(t, "price_basic", cfg.Plans.PriceIDs["basic"])
	assert.NotContains(t, cfg.Plans.PriceIDs, "starter")
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 2.5, cfg.RateLimit.OwnerRate)
}

func TestGetenvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	t.Setenv("SOME_BOOL", "maybe")

	assert.Equal(t, int64(7), getenvInt64("SOME_INT", 7))
	assert.True(t, getenvBool("SOME_BOOL", true))
	assert.Equal(t, 1.5, getenvFloat("MISSING_FLOAT", 1.5))
}
