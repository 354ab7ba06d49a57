package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Locations tells Load where to look for inputs. The zero value is not
// useful; DefaultLocations discovers the real ones.
type Locations struct {
	UserFile    string
	ProjectFile string
	Getenv      func(string) string
}

// DefaultLocations returns the user config file, the project config file in
// the working directory, and the process environment.
func DefaultLocations() Locations {
	return Locations{
		UserFile:    findUserConfigFile(),
		ProjectFile: findProjectConfigFile(),
		Getenv:      os.Getenv,
	}
}

// Load reads configuration from every source in priority order:
// 1. Defaults
// 2. User config file (~/.config/todosync/config.toml)
// 3. Project config file (todosync.toml or .todosync.toml)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	return LoadFrom(DefaultLocations(), fs, args)
}

// LoadFrom is Load with explicit locations.
func LoadFrom(loc Locations, fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if loc.UserFile != "" {
		if err := loadFile(cfg, loc.UserFile, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", loc.UserFile, err)
		}
	}
	if loc.ProjectFile != "" {
		if err := loadFile(cfg, loc.ProjectFile, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", loc.ProjectFile, err)
		}
	}

	getenv := loc.Getenv
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if err := loadEnv(cfg, getenv); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	finalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string, source Source) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	for _, f := range fields() {
		if md.IsDefined(f) {
			cfg.Sources[f] = source
		}
	}
	cfg.Files = append(cfg.Files, path)
	return nil
}

// Environment variable names.
const (
	EnvAPIURL      = "TODO_API_URL"
	EnvMode        = "TODO_MODE"
	EnvStore       = "TODO_STORE"
	EnvDataPath    = "TODO_DATA_PATH"
	EnvTimeout     = "TODO_TIMEOUT"
	EnvLogLevel    = "TODO_LOG_LEVEL"
	EnvLogFormat   = "TODO_LOG_FORMAT"
	EnvLogFile     = "TODO_LOG_FILE"
	EnvTheme       = "TODO_THEME"
	EnvMetricsAddr = "TODO_METRICS_ADDR"
)

func loadEnv(cfg *Config, getenv func(string) string) error {
	strs := []struct {
		env, field string
		target     *string
	}{
		{EnvAPIURL, "api_url", &cfg.APIURL},
		{EnvMode, "mode", &cfg.Mode},
		{EnvStore, "store", &cfg.Store},
		{EnvDataPath, "data_path", &cfg.DataPath},
		{EnvLogLevel, "log_level", &cfg.LogLevel},
		{EnvLogFormat, "log_format", &cfg.LogFormat},
		{EnvLogFile, "log_file", &cfg.LogFile},
		{EnvTheme, "theme", &cfg.Theme},
		{EnvMetricsAddr, "metrics_addr", &cfg.MetricsAddr},
	}
	for _, s := range strs {
		if v := getenv(s.env); v != "" {
			*s.target = v
			cfg.Sources[s.field] = SourceEnv
		}
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
		cfg.Sources["timeout"] = SourceEnv
	}
	return nil
}

// flagFields maps flag names to the config field they set.
var flagFields = map[string]string{
	"api-url":      "api_url",
	"mode":         "mode",
	"store":        "store",
	"data":         "data_path",
	"timeout":      "timeout",
	"log-level":    "log_level",
	"log-format":   "log_format",
	"log-file":     "log_file",
	"theme":        "theme",
	"metrics-addr": "metrics_addr",
	"group":        "group",
}

func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	if fs == nil {
		fs = flag.NewFlagSet("todo", flag.ContinueOnError)
	}
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "remote collection URL")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "sync mode: optimistic or authoritative")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "local mirror backend: file or sqlite")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "local mirror path")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "remote request timeout (0 = none)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text, json, logfmt")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")
	fs.StringVar(&cfg.Theme, "theme", cfg.Theme, "output theme: classic, neon, mono")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve prometheus metrics on this address")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "group output by pending/done")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if field, ok := flagFields[f.Name]; ok {
			cfg.Sources[field] = SourceFlag
		}
	})
	cfg.Args = fs.Args()
	return nil
}

// Value renders the field named by its toml key, for display.
func (c *Config) Value(field string) string {
	switch field {
	case "api_url":
		return c.APIURL
	case "mode":
		return c.Mode
	case "store":
		return c.Store
	case "data_path":
		return c.DataPath
	case "timeout":
		return c.Timeout.String()
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	case "log_file":
		return c.LogFile
	case "theme":
		return c.Theme
	case "metrics_addr":
		return c.MetricsAddr
	case "group":
		return strconv.FormatBool(c.Group)
	}
	return ""
}

// Fields returns the configurable field names in display order.
func Fields() []string { return fields() }

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{"todosync.toml", ".todosync.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for the user-level config file.
func findUserConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "todosync", "config.toml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
