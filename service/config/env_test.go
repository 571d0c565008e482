package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHardCoded_Defaults(t *testing.T) {
	cfg := NewHardCoded()

	assert.Equal(t, float32(0.7), cfg.GetClassifierParameters().ConfidenceThreshold)
	assert.Equal(t, 4*time.Second, cfg.GetCooldownParameters().Initial)
	assert.Equal(t, 12*time.Second, cfg.GetCooldownParameters().Subsequent)
	assert.Equal(t, float64(5000), cfg.GetMotionParameters().MinContourArea)
	assert.Equal(t, float32(244), cfg.GetMotionParameters().BinaryThreshold)
	assert.Equal(t, 500, cfg.GetMotionParameters().History)
	assert.Equal(t, SqliteStoreDriver, cfg.GetStoreParameters().Driver)
	assert.Empty(t, cfg.GetUserIdentity())

	s := defaultSettings()
	assert.NoError(t, Validate(&s))
}

func TestNewEnv_Overrides(t *testing.T) {
	t.Setenv("WS_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("WS_COOLDOWN_SUBSEQUENT", "20s")
	t.Setenv("WS_COOLDOWN_INITIAL", "2")
	t.Setenv("WS_USER_ID", "supabase-uid-1")
	t.Setenv("WS_FRAMER", RandomFramerType)
	t.Setenv("WS_PREVIEW", "true")

	cfg, err := NewEnv()
	require.NoError(t, err)

	assert.Equal(t, float32(0.85), cfg.GetClassifierParameters().ConfidenceThreshold)
	assert.Equal(t, 20*time.Second, cfg.GetCooldownParameters().Subsequent)
	assert.Equal(t, 2*time.Second, cfg.GetCooldownParameters().Initial)
	assert.Equal(t, "supabase-uid-1", cfg.GetUserIdentity())
	assert.Equal(t, RandomFramerType, cfg.GetFramerType())
	assert.True(t, cfg.GetPreviewEnabled())
}

func TestNewEnv_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.yaml")
	content := `
user_identity: from-file
camera_source: rtsp://camera.local/stream
cooldown:
  initial: 1s
  subsequent: 30s
store:
  driver: postgres
  dsn: postgres://ws:ws@localhost:5432/ws
  timeout: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("WS_CONFIG_FILE", path)
	t.Setenv("WS_USER_ID", "from-env")

	cfg, err := NewEnv()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GetUserIdentity())
	assert.Equal(t, "rtsp://camera.local/stream", cfg.GetCameraSource())
	assert.Equal(t, time.Second, cfg.GetCooldownParameters().Initial)
	assert.Equal(t, 30*time.Second, cfg.GetCooldownParameters().Subsequent)
	assert.Equal(t, PostgresStoreDriver, cfg.GetStoreParameters().Driver)
	assert.Equal(t, 2*time.Second, cfg.GetStoreParameters().Timeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, float32(0.7), cfg.GetClassifierParameters().ConfidenceThreshold)
}

func TestNewEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"WS_CONFIDENCE_THRESHOLD": "1.5",
		"WS_STORE_DRIVER":         "mongo",
		"WS_FRAMER":               "usb",
		"WS_STORE_TIMEOUT":        "0s",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := NewEnv()
			assert.Error(t, err)
		})
	}
}

func TestNewEnv_StoreTimeoutWithinShutdownWindow(t *testing.T) {
	t.Setenv("WS_SHUTDOWN_SECONDS", "20")
	t.Setenv("WS_STORE_TIMEOUT", "15s")

	cfg, err := NewEnv()
	require.NoError(t, err)

	wait := ShutdownWait(cfg)
	assert.Greater(t, wait, 20*time.Second+15*time.Second)
	assert.Equal(t, 37*time.Second, wait)
}

func TestNewEnv_StoreTimeoutBeyondShutdownWindow(t *testing.T) {
	t.Setenv("WS_SHUTDOWN_SECONDS", "5")
	t.Setenv("WS_STORE_TIMEOUT", "15s")

	_, err := NewEnv()
	assert.ErrorContains(t, err, "exceeds mode_max_shutdown_time")
}

func TestShutdownWait_Defaults(t *testing.T) {
	cfg := NewHardCoded()
	assert.Equal(t, 5*time.Second+3*time.Second+shutdownMargin, ShutdownWait(cfg))
}
