package cli

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/idilsaglam/todosync/internal/api/apitest"
	"github.com/idilsaglam/todosync/internal/config"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/model"
)

type harness struct {
	srv    *apitest.Server
	cfg    *config.Config
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T, mode, storeKind string, seed ...model.Item) *harness {
	t.Helper()
	srv := apitest.New(t, seed...)
	dir := t.TempDir()
	args := []string{
		"-api-url", srv.CollectionURL(),
		"-mode", mode,
		"-store", storeKind,
		"-data", filepath.Join(dir, "todos.data"),
	}
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	cfg, err := config.LoadFrom(config.Locations{}, fs, args)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{srv: srv, cfg: cfg}
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	return Run(context.Background(), args, Options{
		Config: h.cfg,
		Logger: logging.Discard(),
		Stdout: &h.stdout,
		Stderr: &h.stderr,
	})
}

func TestRunUsage(t *testing.T) {
	h := newHarness(t, "optimistic", config.StoreFile)
	tests := []struct {
		args []string
		want int
	}{
		{args: nil, want: ExitUsage},
		{args: []string{"frobnicate"}, want: ExitUsage},
		{args: []string{"add"}, want: ExitUsage},
		{args: []string{"add", "   "}, want: ExitUsage},
		{args: []string{"done"}, want: ExitUsage},
		{args: []string{"done", "x"}, want: ExitUsage},
		{args: []string{"rm", "1", "2"}, want: ExitUsage},
		{args: []string{"help"}, want: ExitOK},
	}
	for _, tt := range tests {
		if got := h.run(tt.args...); got != tt.want {
			t.Errorf("Run(%q) = %d, want %d (stderr %q)", tt.args, got, tt.want, h.stderr.String())
		}
	}
	if n := len(h.srv.Requests()); n != 0 {
		t.Errorf("usage errors made %d requests", n)
	}
}

func TestHelpListsSubcommands(t *testing.T) {
	h := newHarness(t, "optimistic", config.StoreFile)
	h.run("help")
	for _, want := range []string{"ls", "add <text...>", "done <index>", "rm <index>", "tui", "config"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestAddThenList(t *testing.T) {
	for _, mode := range []string{"optimistic", "authoritative"} {
		t.Run(mode, func(t *testing.T) {
			h := newHarness(t, mode, config.StoreFile)
			if code := h.run("add", "Buy", "milk"); code != ExitOK {
				t.Fatalf("add = %d, stderr %q", code, h.stderr.String())
			}
			if !strings.Contains(h.stdout.String(), "added") {
				t.Errorf("stdout = %q", h.stdout.String())
			}
			if items := h.srv.Items(); len(items) != 1 || items[0].Text != "Buy milk" {
				t.Fatalf("server items = %+v", items)
			}

			if code := h.run("ls"); code != ExitOK {
				t.Fatalf("ls = %d", code)
			}
			out := h.stdout.String()
			for _, want := range []string{"Buy milk", " 1.", "Synced with server"} {
				if !strings.Contains(out, want) {
					t.Errorf("ls missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestDoneAndRemove(t *testing.T) {
	seed := []model.Item{{ID: "1", Text: "Buy milk"}, {ID: "2", Text: "Walk dog"}}
	h := newHarness(t, "authoritative", config.StoreFile, seed...)

	if code := h.run("done", "2"); code != ExitOK {
		t.Fatalf("done = %d, stderr %q", code, h.stderr.String())
	}
	if items := h.srv.Items(); !items[1].Completed || items[0].Completed {
		t.Errorf("server items after done = %+v", items)
	}

	if code := h.run("rm", "1"); code != ExitOK {
		t.Fatalf("rm = %d, stderr %q", code, h.stderr.String())
	}
	if items := h.srv.Items(); len(items) != 1 || items[0].ID != "2" {
		t.Errorf("server items after rm = %+v", items)
	}

	if code := h.run("done", "5"); code != ExitUsage {
		t.Errorf("done 5 = %d, want %d", code, ExitUsage)
	}
	if !strings.Contains(h.stderr.String(), "index out of range") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
}

func TestAuthoritativeFailureReportsNoChange(t *testing.T) {
	h := newHarness(t, "authoritative", config.StoreFile)
	h.srv.FailWith(http.StatusInternalServerError)

	if code := h.run("add", "Buy milk"); code != ExitError {
		t.Fatalf("add = %d, want %d", code, ExitError)
	}
	if !strings.Contains(h.stderr.String(), "no change") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
}

func TestOptimisticFallsBackToMirror(t *testing.T) {
	for _, kind := range []string{config.StoreFile, config.StoreSQLite} {
		t.Run(kind, func(t *testing.T) {
			h := newHarness(t, "optimistic", kind)
			if code := h.run("add", "Buy milk"); code != ExitOK {
				t.Fatalf("add = %d", code)
			}

			h.srv.FailWith(http.StatusServiceUnavailable)
			if code := h.run("ls"); code != ExitOK {
				t.Fatalf("ls = %d", code)
			}
			out := h.stdout.String()
			if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "showing saved list") {
				t.Errorf("ls offline:\n%s", out)
			}

			// still applied locally while the server is down
			if code := h.run("done", "1"); code != ExitOK {
				t.Fatalf("done offline = %d, stderr %q", code, h.stderr.String())
			}
			h.run("ls")
			if !strings.Contains(h.stdout.String(), "100%") {
				t.Errorf("ls after offline done:\n%s", h.stdout.String())
			}
		})
	}
}

func TestGroupedListKeepsIndexes(t *testing.T) {
	seed := []model.Item{
		{ID: "1", Text: "Buy milk", Completed: true},
		{ID: "2", Text: "Walk dog"},
	}
	h := newHarness(t, "optimistic", config.StoreFile, seed...)
	h.cfg.Group = true
	if code := h.run("ls"); code != ExitOK {
		t.Fatalf("ls = %d", code)
	}
	out := h.stdout.String()
	pending := strings.Index(out, "Pending")
	done := strings.Index(out, "Done")
	walk := strings.Index(out, " 2.")
	milk := strings.Index(out, " 1.")
	if pending < 0 || done < 0 || !(pending < walk && walk < done && done < milk) {
		t.Errorf("grouped output out of order:\n%s", out)
	}
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t, "authoritative", config.StoreFile)
	if code := h.run("config"); code != ExitOK {
		t.Fatalf("config = %d", code)
	}
	out := h.stdout.String()
	for _, want := range []string{"api_url", h.srv.CollectionURL(), "authoritative", "(flag)", "(default)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestLongTextTruncatedOnCharacterBoundary(t *testing.T) {
	text := strings.Repeat("a", 76) + strings.Repeat("é", 10)
	lines := flatLines([]model.Item{{ID: "1", Text: text}})
	if len(lines) != 1 {
		t.Fatalf("lines = %q", lines)
	}
	if !utf8.ValidString(lines[0]) {
		t.Errorf("line is not valid UTF-8: %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "...") || strings.Contains(lines[0], text) {
		t.Errorf("line not truncated: %q", lines[0])
	}
}
