package observability

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maxvaer/wafpierce/internal/config"
)

func setupTestLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	buf := new(bytes.Buffer)
	Initialize(cfg, zapcore.AddSync(buf))
	return buf
}

func TestConsoleLoggerColorsLevel(t *testing.T) {
	buf := setupTestLogger(t, config.LoggerConfig{Level: "debug", Format: "console"})

	GetLogger().Info("Baseline established", zap.Int("status", 403))
	Sync()

	out := buf.String()
	assert.Contains(t, out, colorGreen+"INFO"+colorReset)
	assert.Contains(t, out, "wafpierce.")
	assert.Contains(t, out, "Baseline established")
	assert.Contains(t, out, `"status": 403`)
}

func TestConsoleLoggerNoColor(t *testing.T) {
	buf := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "console", NoColor: true})

	GetLogger().Warn("Target is throttling")
	Sync()

	assert.Contains(t, buf.String(), "WARN")
	assert.NotContains(t, buf.String(), colorReset)
}

func TestJSONLogger(t *testing.T) {
	buf := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "json"})

	GetLogger().Warn("Probe skipped", zap.String("technique", "X-Forwarded-For: 127.0.0.1"))
	Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Probe skipped", entry["msg"])
	assert.Equal(t, "X-Forwarded-For: 127.0.0.1", entry["technique"])
}

func TestLevelFiltering(t *testing.T) {
	buf := setupTestLogger(t, config.LoggerConfig{Level: "warn", Format: "json"})

	GetLogger().Info("hidden")
	GetLogger().Debug("hidden too")
	Sync()
	assert.Empty(t, buf.String())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	buf := setupTestLogger(t, config.LoggerConfig{Level: "loud", Format: "json"})

	GetLogger().Debug("hidden")
	GetLogger().Info("shown")
	Sync()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.log")
	buf := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "console", LogFile: path, MaxSize: 1})

	GetLogger().Info("Bypass detected", zap.String("severity", "CRITICAL"))
	Sync()

	assert.Contains(t, buf.String(), "Bypass detected")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	var entry map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "CRITICAL", entry["severity"])
}

func TestInitializeOnlyOnce(t *testing.T) {
	first := setupTestLogger(t, config.LoggerConfig{Level: "info", Format: "json"})
	second := new(bytes.Buffer)
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(second))

	GetLogger().Info("once")
	Sync()
	assert.Contains(t, first.String(), "once")
	assert.Empty(t, second.String())
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, GetLogger())
	Sync()
}
