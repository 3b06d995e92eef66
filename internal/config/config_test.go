package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BANK_NOTI_TIMEOUT", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.BankNotiTimeout)
	assert.Equal(t, "BankNoti", cfg.AlertChannel)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	assert.False(t, cfg.OdooEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BANK_NOTI_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("ODOO_URL", "https://odoo.example")
	t.Setenv("ODOO_DB", "prod")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.BankNotiTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.OdooEnabled())
}

func TestGetEnvDuration_RejectsNonPositive(t *testing.T) {
	t.Setenv("X_TIMEOUT", "-1s")
	assert.Equal(t, time.Second, getEnvDuration("X_TIMEOUT", time.Second))
}
