package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("STORAGE_MODE", "sql")
	t.Setenv("DATABASE_URL", "twipost.db")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("PAGE_SIZE", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, Relational, cfg.StorageMode)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.NotEmpty(t, cfg.SecretKey, "a random key is generated")
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"bad mode":        {"STORAGE_MODE": "cassandra"},
		"mongo no url":    {"STORAGE_MODE": "mongo", "MONGO_URL": ""},
		"bad ttl":         {"SESSION_TTL": "forever"},
		"negative ttl":    {"SESSION_TTL": "-1h"},
		"bad page size":   {"PAGE_SIZE": "0"},
		"bad rate":        {"AUTH_RATE_LIMIT": "fast"},
		"bad cookie flag": {"SECURE_COOKIES": "sometimes"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STORAGE_MODE", "inmemory")
			t.Setenv("SESSION_TTL", "1h")
			t.Setenv("PAGE_SIZE", "10")
			t.Setenv("AUTH_RATE_LIMIT", "30")
			t.Setenv("SECURE_COOKIES", "false")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TWIPOST_TEST_INT", "12")
	v, err := GetEnvIntWithDefault("TWIPOST_TEST_INT", 1)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = GetEnvIntWithDefault("TWIPOST_TEST_MISSING", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.Equal(t, "12", GetEnvVarWithDefault("TWIPOST_TEST_INT", "1"))
	assert.Equal(t, "fallback", GetEnvVarWithDefault("TWIPOST_TEST_MISSING", "fallback"))
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, ConfigureLogging("debug"))
	assert.Error(t, ConfigureLogging("loud"))
	assert.NoError(t, ConfigureLogging("info"))
}
