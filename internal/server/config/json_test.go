package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http":        "0.0.0.0:9000",
		"database_dsn":              "postgres://db",
		"secret_key":                "jwt",
		"encryption_secret":         "enc",
		"kv_backend":                "memory",
		"kv_default_ttl":            "1m",
		"message_page_size":         50,
		"cursor_ttl":                "2h",
		"s3_bucket":                 "bucket",
		"cloudfront_domain":         "cdn.example.com",
		"signed_url_validity":       "10m",
		"signed_url_cache_fraction": 0.5,
		"client_url":                "https://app.example.com",
		"production":                true,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"keybud", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "0.0.0.0:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "jwt", cfg.SecretKey)
		assert.Equal(t, "enc", cfg.EncryptionSecret)
		assert.Equal(t, KVBackendMemory, cfg.KVBackend)
		assert.Equal(t, time.Minute, cfg.KVDefaultTTL)
		assert.Equal(t, 50, cfg.MessagePageSize)
		assert.Equal(t, 2*time.Hour, cfg.CursorTTL)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "cdn.example.com", cfg.CloudFrontDomain)
		assert.Equal(t, 10*time.Minute, cfg.SignedURLValidity)
		assert.InDelta(t, 0.5, cfg.SignedURLCacheFraction, 1e-9)
		assert.Equal(t, "https://app.example.com", cfg.ClientURL)
		assert.True(t, cfg.Production)

		// untouched by the file
		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, 24*time.Hour, cfg.AccessTokenValidityDuration)
	})

	t.Run("no config flag leaves config unchanged", func(t *testing.T) {
		os.Args = []string{"keybud"}

		cfg := &Config{}
		cfg.LoadDefaults()
		want := *cfg
		parseJson(cfg)

		assert.Equal(t, want, *cfg)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"keybud", "-c", filepath.Join(t.TempDir(), "nope.json")}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
		os.Args = []string{"keybud", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
