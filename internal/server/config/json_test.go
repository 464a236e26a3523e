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

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"http_addr":         "127.0.0.1:8080",
		"database_dsn":      "postgres://db/app",
		"access_token_ttl":  "15m",
		"refresh_token_ttl": "72h",
		"cors_origins":      []string{"https://app.example"},
		"s3": map[string]any{
			"bucket": "records",
			"prefix": "cfg",
		},
	})

	t.Run("present keys override", func(t *testing.T) {
		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(&cfg, []string{"-config", path}))

		assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
		assert.Equal(t, "postgres://db/app", cfg.DatabaseDSN)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
		assert.Equal(t, 72*time.Hour, cfg.RefreshTokenTTL)
		assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
		assert.Equal(t, "records", cfg.S3.Bucket)
		assert.Equal(t, "cfg", cfg.S3.Prefix)
	})

	t.Run("absent keys keep defaults", func(t *testing.T) {
		var cfg Config
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(&cfg, []string{"-c", path}))

		assert.Equal(t, ":50051", cfg.GRPCHealthAddr)
		assert.Equal(t, 12, cfg.BcryptCost)
		assert.Equal(t, "us-east-1", cfg.S3.Region)
	})

	t.Run("no config flag is a no-op", func(t *testing.T) {
		cfg := Config{HTTPAddr: "keep"}
		require.NoError(t, parseJSON(&cfg, []string{"-a", ":1"}))
		assert.Equal(t, "keep", cfg.HTTPAddr)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		var cfg Config
		require.Error(t, parseJSON(&cfg, []string{"-c", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		var cfg Config
		require.Error(t, parseJSON(&cfg, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}))
	})
}
