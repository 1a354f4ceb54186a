package utils

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "bluetooth.yaml")
	writeConfig(t, path, `
port: "6000"
logLevel: debug
logFormat: json
logFile: /tmp/bt.log
plugin:
  disabled: true
  commandTimeout: 15s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, LOG_FORMAT_JSON, cfg.LogFormat)
	assert.Equal(t, "/tmp/bt.log", cfg.LogFile)
	assert.Equal(t, DEFAULT_VERSION_FILE, cfg.VersionFile)
	assert.True(t, cfg.Plugin.Disabled)
	assert.Equal(t, 15*time.Second, cfg.Plugin.CommandTimeout)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bluetooth.yaml")
	writeConfig(t, path, "port: \"6000\"\nlogLevel: debug\n")

	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	dir := t.TempDir()

	for name, content := range map[string]string{
		"yaml":    "port: [",
		"level":   "logLevel: loud\n",
		"format":  "logFormat: xml\n",
		"timeout": "plugin:\n  commandTimeout: -1s\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			writeConfig(t, path, content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("BTMANAGER_CONFIG", "")
	assert.Equal(t, DEFAULT_CONFIG_PATH, ConfigPath())

	t.Setenv("BTMANAGER_CONFIG", "/tmp/bt.yaml")
	assert.Equal(t, "/tmp/bt.yaml", ConfigPath())
}

func TestSetupLogging(t *testing.T) {
	logger := logrus.New()
	logFile := filepath.Join(t.TempDir(), "bt.log")

	closer, err := SetupLogging(logger, &Config{LogLevel: "debug", LogFormat: LOG_FORMAT_JSON, LogFile: logFile})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger.WithField("adapter", "/org/bluez/hci0").Debug("scan started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"adapter":"/org/bluez/hci0"`)
	assert.Contains(t, string(data), `"msg":"scan started"`)
}

func TestSetupLoggingText(t *testing.T) {
	logger := logrus.New()

	closer, err := SetupLogging(logger, &Config{LogLevel: "warn", LogFormat: LOG_FORMAT_TEXT})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	_, err = SetupLogging(logger, &Config{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestWatchConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "bluetooth.yaml")
	writeConfig(t, path, "logLevel: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		levels []string
	)
	logger, _ := test.NewNullLogger()
	require.NoError(t, WatchConfig(ctx, path, logger, func(cfg *Config) {
		mu.Lock()
		defer mu.Unlock()
		levels = append(levels, cfg.LogLevel)
	}))

	writeConfig(t, filepath.Join(dir, "other.yaml"), "logLevel: error\n")
	writeConfig(t, path, "logLevel: debug\n")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, levels, "error")
}
