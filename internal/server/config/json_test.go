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

func writeTempJSON(t *testing.T, data any) string {
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
	t.Setenv("VAULTGATE_CONFIG", "")

	t.Run("overrides only named fields", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{
			"endpoint_addr_http":     ":9999",
			"session_duration":       "90s",
			"payment_timeout":        4000000000,
			"media_fee":              75,
			"max_passkey_attempts":   3,
			"passkey_attempt_window": "1m",
			"redis_addr":             "localhost:6379",
		})
		os.Args = []string{"server", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":9999", cfg.EndpointAddrHTTP)
		assert.Equal(t, 90*time.Second, cfg.SessionDuration)
		assert.Equal(t, 4*time.Second, cfg.PaymentTimeout)
		assert.Equal(t, int64(75), cfg.MediaFee)
		assert.Equal(t, 3, cfg.MaxPasskeyAttempts)
		assert.Equal(t, time.Minute, cfg.PasskeyAttemptWindow)
		assert.Equal(t, "localhost:6379", cfg.RedisAddr)

		// untouched
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, int64(10), cfg.PersonalFee)
	})

	t.Run("env var path", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"s3_bucket": "originals"})
		t.Setenv("VAULTGATE_CONFIG", path)
		os.Args = []string{"server"}

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, "originals", cfg.S3Bucket)
	})

	t.Run("no config leaves values alone", func(t *testing.T) {
		t.Setenv("VAULTGATE_CONFIG", "")
		os.Args = []string{"server"}

		cfg := &Config{EndpointAddrHTTP: "keep:1"}
		parseJson(cfg)
		assert.Equal(t, "keep:1", cfg.EndpointAddrHTTP)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ nope`), 0o600))
		os.Args = []string{"server", "-c", bad}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"server", "-c", filepath.Join(t.TempDir(), "absent.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
