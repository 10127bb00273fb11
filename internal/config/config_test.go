package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_BPS", "")
	t.Setenv("TRANSITION_MAX_RETRIES", "0")
	t.Setenv("PAYMENT_CONFIRM_TIMEOUT_MS", "2500")
	t.Setenv("TRACKING_POLL_INTERVAL_SECONDS", "0")

	cfg := Load()
	assert.Equal(t, 1000, cfg.PlatformFeeBPS)
	assert.Equal(t, 1, cfg.TransitionMaxRetries)
	assert.Equal(t, 2500*time.Millisecond, cfg.PaymentConfirmTimeout)
	assert.Equal(t, 30*time.Minute, cfg.TrackingPollInterval)
}

func TestParseTemplates(t *testing.T) {
	got := parseTemplates("Estafeta=https://track.example/estafeta?n=%s, dhl=https://dhl.example/%s, broken, ups=https://ups.example/")
	assert.Equal(t, map[string]string{
		"estafeta": "https://track.example/estafeta?n=%s",
		"dhl":      "https://dhl.example/%s",
	}, got)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, parseList(" a:9092 ,, b:9092 "))
	assert.Nil(t, parseList(""))
}
