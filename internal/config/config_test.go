package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvDotEnv, "0")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("AUDIO_CHUNK_MS", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	cfg := Load()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 8081, cfg.RPCPort)
	assert.Equal(t, time.Second, cfg.AudioChunk)
	assert.Equal(t, LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Telemetry().Endpoint)

	cc := cfg.Coach()
	assert.Equal(t, 3*time.Second, cc.ScreenInterval)
	assert.Equal(t, 50, cc.SuggestionWordStep)
	assert.Equal(t, 30*time.Second, cc.FeedbackLowTTL)
	assert.Equal(t, 2*time.Second, cc.TranscriptDebounce)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(EnvDotEnv, "0")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("ANALYSIS_INTERVAL_MS", "2500")
	t.Setenv("FRAME_BUFFER_SIZE", "not-a-number")
	t.Setenv("WS_MAX_MESSAGE_SIZE", "4096")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := Load()
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 2500*time.Millisecond, cfg.Coach().AnalysisInterval)
	assert.Equal(t, 10, cfg.FrameBufferSize)
	assert.Equal(t, int64(4096), cfg.WS().MaxMessageSize)
	assert.Equal(t, LevelWarn, cfg.LogLevel)
	assert.Equal(t, "collector:4317", cfg.Telemetry().Endpoint)
	assert.True(t, cfg.Telemetry().Insecure)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEXT_MODEL=from-file\nVISION_MODEL=from-file\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv(EnvDotEnv, "")
	t.Setenv("TEXT_MODEL", "from-env")
	t.Setenv("VISION_MODEL", "")
	os.Unsetenv("VISION_MODEL")

	require.NoError(t, LoadDotEnv())
	assert.Equal(t, "from-env", os.Getenv("TEXT_MODEL"))
	assert.Equal(t, "from-file", os.Getenv("VISION_MODEL"))
	os.Unsetenv("VISION_MODEL")
}

func TestLoadDotEnvDisabled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIVECOACH_TEST_KEY=set\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv(EnvDotEnv, "0")
	require.NoError(t, LoadDotEnv())
	assert.Empty(t, os.Getenv("LIVECOACH_TEST_KEY"))
}
