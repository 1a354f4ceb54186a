package utils

import "time"

// Config is the daemon configuration. Zero values are filled from
// DefaultConfig.
type Config struct {
	Port        string       `yaml:"port"`
	LogLevel    string       `yaml:"logLevel"`
	LogFormat   string       `yaml:"logFormat"`
	LogFile     string       `yaml:"logFile"`
	VersionFile string       `yaml:"versionFile"`
	Plugin      PluginConfig `yaml:"plugin"`
}

type PluginConfig struct {
	// Disabled skips BlueZ initialization; the plugin then reports
	// itself as not initialized.
	Disabled       bool          `yaml:"disabled"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
}

type InfoResponse struct {
	Version string `json:"version"`
}
