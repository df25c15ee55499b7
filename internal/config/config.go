// Package config loads statebridge settings from the global and project
// config files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configurable statebridge settings.
type Config struct {
	BaseURL          string `json:"base_url"`
	TokenEndpoint    string `json:"token_endpoint"`    // relative to base_url unless absolute
	SnapshotEndpoint string `json:"snapshot_endpoint"` // relative to base_url unless absolute
	MaxErrors        int    `json:"max_errors"`
	MaxConsole       int    `json:"max_console"`
	CollectorTimeout string `json:"collector_timeout"` // Go duration; "0s" disables
	OutputDir        string `json:"output_dir"`
	DefaultFormat    string `json:"default_format"` // "markdown" | "json"
	PageURL          string `json:"page_url"`
	ListenAddr       string `json:"listen_addr"`
	Database         string `json:"database"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BaseURL:          "http://localhost:8080",
		TokenEndpoint:    "/api/state/token",
		SnapshotEndpoint: "/api/state/snapshot",
		MaxErrors:        20,
		MaxConsole:       50,
		CollectorTimeout: "10s",
		OutputDir:        ".",
		DefaultFormat:    "markdown",
		ListenAddr:       ":8080",
		Database:         "statebridge.db",
	}
}

// GlobalPath returns ~/.config/statebridge/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "statebridge", "config.json"), nil
}

// ProjectFile is read from the current working directory.
const ProjectFile = ".statebridgeconfig"

// LoadGlobal reads ~/.config/statebridge/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .statebridgeconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(ProjectFile, false)
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Empty strings and non-positive numbers count as unset.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer != nil {
			result.overlay(layer)
		}
	}
	return result
}

func (c *Config) overlay(o *Config) {
	setString(&c.BaseURL, o.BaseURL)
	setString(&c.TokenEndpoint, o.TokenEndpoint)
	setString(&c.SnapshotEndpoint, o.SnapshotEndpoint)
	setString(&c.CollectorTimeout, o.CollectorTimeout)
	setString(&c.OutputDir, o.OutputDir)
	setString(&c.DefaultFormat, o.DefaultFormat)
	setString(&c.PageURL, o.PageURL)
	setString(&c.ListenAddr, o.ListenAddr)
	setString(&c.Database, o.Database)
	if o.MaxErrors > 0 {
		c.MaxErrors = o.MaxErrors
	}
	if o.MaxConsole > 0 {
		c.MaxConsole = o.MaxConsole
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Timeout parses CollectorTimeout. Zero means collectors run unbounded.
func (c Config) Timeout() (time.Duration, error) {
	if c.CollectorTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CollectorTimeout)
	if err != nil {
		return 0, fmt.Errorf("collector_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("collector_timeout: negative duration %s", d)
	}
	return d, nil
}

// TokenURL resolves TokenEndpoint against BaseURL.
func (c Config) TokenURL() string { return resolve(c.BaseURL, c.TokenEndpoint) }

// SnapshotURL resolves SnapshotEndpoint against BaseURL.
func (c Config) SnapshotURL() string { return resolve(c.BaseURL, c.SnapshotEndpoint) }

func resolve(base, endpoint string) string {
	if u, err := url.Parse(endpoint); (err == nil && u.IsAbs()) || base == "" {
		return endpoint
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
