package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RETRY_MAX", "")
	t.Setenv("GMAIL_WATCH_LABELS", "")
	t.Setenv("RETRY_INITIAL_DELAY", "")
	t.Setenv("OPERATOR_TOKEN_EXPIRY", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, 5, cfg.RetryMax)
	assert.Equal(t, 2*time.Second, cfg.RetryInitialDelay)
	assert.Equal(t, []string{"INBOX"}, cfg.GmailWatchLabels)
	assert.Equal(t, "me", cfg.GmailUser)
	assert.Equal(t, 24*time.Hour, cfg.OperatorTokenExpiry)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RETRY_MAX", "3")
	t.Setenv("RETRY_INITIAL_DELAY", "500ms")
	t.Setenv("GMAIL_WATCH_LABELS", "INBOX, Label_42 ,")
	t.Setenv("OPERATOR_FCM_TOKENS", "tok-a,tok-b")
	t.Setenv("WEBHOOK_RPS", "1.5")
	t.Setenv("OPERATOR_TOKEN_EXPIRY", "8h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.com")

	cfg := Load()

	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryInitialDelay)
	assert.Equal(t, []string{"INBOX", "Label_42"}, cfg.GmailWatchLabels)
	assert.Equal(t, []string{"tok-a", "tok-b"}, cfg.OperatorFCMTokens)
	assert.Equal(t, 1.5, cfg.WebhookRPS)
	assert.Equal(t, 8*time.Hour, cfg.OperatorTokenExpiry)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RETRY_MAX", "lots")
	t.Setenv("WATCH_RENEW_INTERVAL", "daily")

	cfg := Load()

	assert.Equal(t, 5, cfg.RetryMax)
	assert.Equal(t, 24*time.Hour, cfg.WatchRenewInterval)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DatabaseURL:        "postgres://localhost/leads",
		GoogleClientID:     "id",
		GoogleClientSecret: "secret",
		GoogleRefreshToken: "refresh",
		EscalationEmail:    "ops@example.com",
		AIProvider:         "ollama",
	}
	require.NoError(t, cfg.Validate())

	cfg.EscalationEmail = ""
	cfg.AIProvider = "gemini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ESCALATION_EMAIL")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
