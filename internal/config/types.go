package config

import "time"

// Config is the full configuration consumed by the diagnostic.
//
// Everything has a usable default; an empty file (or no file at all) yields
// a working setup probing public endpoints with file-backed history.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Storage   StorageConfig   `yaml:"storage"`
	History   HistoryConfig   `yaml:"history"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

// EndpointsConfig names the downstream HTTP endpoints probed during a
// session. The download endpoint must accept a bytes= query parameter;
// the env endpoint must return JSON with org/asn and ip fields.
type EndpointsConfig struct {
	PingURL     string `yaml:"ping_url"`
	DownloadURL string `yaml:"download_url"`
	UploadURL   string `yaml:"upload_url"`
	EnvURL      string `yaml:"env_url"`
}

type StorageConfig struct {
	Driver      string        `yaml:"driver"`
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type HistoryConfig struct {
	// MaxRecords caps how many records CleanOlderThan keeps. 0 means default.
	MaxRecords int `yaml:"max_records"`
	// MaxAgeDays bounds retention for CleanOlderThan. 0 means default.
	MaxAgeDays int `yaml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Endpoints: EndpointsConfig{
			PingURL:     "https://www.cloudflare.com/cdn-cgi/trace",
			DownloadURL: "https://speed.cloudflare.com/__down",
			UploadURL:   "https://speed.cloudflare.com/__up",
			EnvURL:      "https://ipinfo.io/json",
		},
		Storage: StorageConfig{Driver: "file", Path: "speedtest/history.db"},
		History: HistoryConfig{MaxRecords: 500, MaxAgeDays: 90},
	}
}

// applyDefaults fills zero-valued fields in-place.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Endpoints.PingURL == "" {
		c.Endpoints.PingURL = d.Endpoints.PingURL
	}
	if c.Endpoints.DownloadURL == "" {
		c.Endpoints.DownloadURL = d.Endpoints.DownloadURL
	}
	if c.Endpoints.UploadURL == "" {
		c.Endpoints.UploadURL = d.Endpoints.UploadURL
	}
	if c.Endpoints.EnvURL == "" {
		c.Endpoints.EnvURL = d.Endpoints.EnvURL
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.History.MaxRecords == 0 {
		c.History.MaxRecords = d.History.MaxRecords
	}
	if c.History.MaxAgeDays == 0 {
		c.History.MaxAgeDays = d.History.MaxAgeDays
	}
}
