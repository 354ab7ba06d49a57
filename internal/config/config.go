// Package config handles configuration loading and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/idilsaglam/todosync/internal/api"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/todolist"
	"github.com/idilsaglam/todosync/internal/ui"
)

// Source represents where a configuration value came from.
type Source string

const (
	SourceDefault  Source = "default"
	SourceUserFile Source = "user file"
	SourceProjFile Source = "project file"
	SourceEnv      Source = "environment"
	SourceFlag     Source = "flag"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Default values.
const (
	DefaultMode      = string(todolist.ModeOptimistic)
	DefaultStore     = StoreFile
	DefaultFilePath  = "todos.json"
	DefaultSQLPath   = "todos.db"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLogFile   = "todosync.log"
	DefaultTheme     = "classic"
)

// Config holds the full configuration.
type Config struct {
	APIURL      string        `toml:"api_url"`
	Mode        string        `toml:"mode"`
	Store       string        `toml:"store"`
	DataPath    string        `toml:"data_path"`
	Timeout     time.Duration `toml:"timeout"`
	LogLevel    string        `toml:"log_level"`
	LogFormat   string        `toml:"log_format"`
	LogFile     string        `toml:"log_file"`
	Theme       string        `toml:"theme"`
	MetricsAddr string        `toml:"metrics_addr"`
	Group       bool          `toml:"group"`

	// Sources maps each field's toml name to where its value came from.
	Sources map[string]Source `toml:"-"`
	// Files lists the config files that were read, in order.
	Files []string `toml:"-"`
	// Args holds the positional arguments left after flag parsing.
	Args []string `toml:"-"`
}

// Validation errors.
var (
	ErrInvalidMode      = errors.New("mode must be one of: optimistic, authoritative")
	ErrInvalidStore     = errors.New("store must be one of: file, sqlite")
	ErrInvalidAPIURL    = errors.New("api_url must be an absolute http or https URL")
	ErrInvalidLogLevel  = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("log format must be one of: text, json, logfmt")
	ErrInvalidTimeout   = errors.New("timeout cannot be negative")
	ErrInvalidTheme     = errors.New("theme must be one of: classic, neon, mono")
)

// fields lists every configurable field for source tracking.
func fields() []string {
	return []string{
		"api_url", "mode", "store", "data_path", "timeout",
		"log_level", "log_format", "log_file", "theme", "metrics_addr", "group",
	}
}

func setDefaults(cfg *Config) {
	cfg.APIURL = api.DefaultBaseURL
	cfg.Mode = DefaultMode
	cfg.Store = DefaultStore
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.Theme = DefaultTheme
	cfg.Sources = make(map[string]Source)
	for _, f := range fields() {
		cfg.Sources[f] = SourceDefault
	}
}

// finalize fills derived values once every source has been applied.
func finalize(cfg *Config) {
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultFilePath
		if cfg.Store == StoreSQLite {
			cfg.DataPath = DefaultSQLPath
		}
	}
	cfg.DataPath = expandPath(cfg.DataPath)
	cfg.LogFile = expandPath(cfg.LogFile)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch todolist.Mode(c.Mode) {
	case todolist.ModeOptimistic, todolist.ModeAuthoritative:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStore, c.Store)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidAPIURL, c.APIURL)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if !ui.ValidTheme(c.Theme) {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, c.Theme)
	}
	return nil
}

// LogOptions converts the logging fields for the logging package.
func (c *Config) LogOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = c.LogLevel
	opts.Format = c.LogFormat
	return opts
}
