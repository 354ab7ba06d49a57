package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/idilsaglam/todosync/internal/api"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(Locations{}, newFlagSet(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIURL != api.DefaultBaseURL {
		t.Errorf("APIURL = %s", cfg.APIURL)
	}
	if cfg.Mode != "optimistic" || cfg.Store != StoreFile || cfg.DataPath != DefaultFilePath {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timeout != 0 {
		t.Errorf("Timeout = %v, want none", cfg.Timeout)
	}
	for _, f := range Fields() {
		if cfg.Sources[f] != SourceDefault {
			t.Errorf("source[%s] = %s", f, cfg.Sources[f])
		}
	}
}

func TestSQLiteDefaultPath(t *testing.T) {
	cfg, err := LoadFrom(Locations{}, newFlagSet(), []string{"-store", "sqlite"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataPath != DefaultSQLPath {
		t.Errorf("DataPath = %s, want %s", cfg.DataPath, DefaultSQLPath)
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	user := writeFile(t, dir, "user.toml", `
api_url = "http://user.test/api/todos"
mode = "authoritative"
theme = "neon"
timeout = "3s"
`)
	project := writeFile(t, dir, "project.toml", `
mode = "optimistic"
store = "sqlite"
`)
	env := envMap(map[string]string{
		EnvStore:    "file",
		EnvLogLevel: "debug",
	})
	args := []string{"-log-level", "warn", "-group", "ls", "extra"}

	cfg, err := LoadFrom(Locations{UserFile: user, ProjectFile: project, Getenv: env}, newFlagSet(), args)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		field  string
		value  string
		source Source
	}{
		{"api_url", "http://user.test/api/todos", SourceUserFile},
		{"theme", "neon", SourceUserFile},
		{"timeout", (3 * time.Second).String(), SourceUserFile},
		{"mode", "optimistic", SourceProjFile},
		{"store", "file", SourceEnv},
		{"log_level", "warn", SourceFlag},
		{"group", "true", SourceFlag},
		{"log_format", "text", SourceDefault},
	}
	for _, tt := range tests {
		if got := cfg.Value(tt.field); got != tt.value {
			t.Errorf("%s = %q, want %q", tt.field, got, tt.value)
		}
		if got := cfg.Sources[tt.field]; got != tt.source {
			t.Errorf("source[%s] = %s, want %s", tt.field, got, tt.source)
		}
	}
	if len(cfg.Args) != 2 || cfg.Args[0] != "ls" {
		t.Errorf("Args = %v", cfg.Args)
	}
	if len(cfg.Files) != 2 {
		t.Errorf("Files = %v", cfg.Files)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		args    []string
		wantErr error
	}{
		{name: "bad mode", args: []string{"-mode", "eventual"}, wantErr: ErrInvalidMode},
		{name: "bad store", env: map[string]string{EnvStore: "redis"}, wantErr: ErrInvalidStore},
		{name: "bad url", args: []string{"-api-url", "localhost:5000"}, wantErr: ErrInvalidAPIURL},
		{name: "bad level", args: []string{"-log-level", "loud"}, wantErr: ErrInvalidLogLevel},
		{name: "bad format", args: []string{"-log-format", "xml"}, wantErr: ErrInvalidLogFormat},
		{name: "negative timeout", args: []string{"-timeout", "-1s"}, wantErr: ErrInvalidTimeout},
		{name: "bad theme", env: map[string]string{EnvTheme: "rainbow"}, wantErr: ErrInvalidTheme},
		{name: "bad env timeout", env: map[string]string{EnvTimeout: "soon"}},
		{name: "unknown key", file: "colour = \"red\"\n"},
		{name: "broken toml", file: "mode = \n"},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := Locations{Getenv: envMap(tt.env)}
			if tt.file != "" {
				loc.ProjectFile = writeFile(t, dir, tt.name+".toml", tt.file)
			}
			_, err := LoadFrom(loc, newFlagSet(), tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	t.Setenv("TODOSYNC_TEST_DIR", "/tmp/x")
	tests := map[string]string{
		"":                        "",
		"~":                       home,
		"~/todos.json":            filepath.Join(home, "todos.json"),
		"$TODOSYNC_TEST_DIR/a.db": "/tmp/x/a.db",
		"relative/todos.json":     "relative/todos.json",
	}
	for in, want := range tests {
		if got := expandPath(in); got != want {
			t.Errorf("expandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
