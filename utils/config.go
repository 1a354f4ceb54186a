package utils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DEFAULT_CONFIG_PATH  = "/etc/nocturne/bluetooth.yaml"
	DEFAULT_PORT         = "5000"
	DEFAULT_VERSION_FILE = "/etc/nocturne/version.txt"

	LOG_FORMAT_TEXT = "text"
	LOG_FORMAT_JSON = "json"
)

func DefaultConfig() *Config {
	return &Config{
		Port:        DEFAULT_PORT,
		LogLevel:    logrus.InfoLevel.String(),
		LogFormat:   LOG_FORMAT_TEXT,
		VersionFile: DEFAULT_VERSION_FILE,
	}
}

// ConfigPath returns the config file location, honouring BTMANAGER_CONFIG.
func ConfigPath() string {
	if path := os.Getenv("BTMANAGER_CONFIG"); path != "" {
		return path
	}
	return DEFAULT_CONFIG_PATH
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// PORT and LOG_LEVEL from the environment win over the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		c.Port = DEFAULT_PORT
	}
	if c.VersionFile == "" {
		c.VersionFile = DEFAULT_VERSION_FILE
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = LOG_FORMAT_TEXT
	case LOG_FORMAT_TEXT, LOG_FORMAT_JSON:
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if c.Plugin.CommandTimeout < 0 {
		return fmt.Errorf("invalid command timeout %s", c.Plugin.CommandTimeout)
	}
	return nil
}

// WatchConfig reloads path whenever it changes and hands the new config to
// onChange until ctx is done. Reload failures are logged and the previous
// config stays in effect.
func WatchConfig(ctx context.Context, path string, logger logrus.FieldLogger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					logger.WithError(err).Warn("Ignoring config change")
					continue
				}
				logger.WithField("path", path).Info("Config reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("Config watcher error")
			}
		}
	}()

	return nil
}
