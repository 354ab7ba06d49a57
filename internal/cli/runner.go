// Package cli routes subcommands to a todolist session and prints results.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"

	"github.com/idilsaglam/todosync/internal/api"
	"github.com/idilsaglam/todosync/internal/config"
	"github.com/idilsaglam/todosync/internal/metrics"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
	"github.com/idilsaglam/todosync/internal/store/jsonstore"
	"github.com/idilsaglam/todosync/internal/store/sqlitestore"
	"github.com/idilsaglam/todosync/internal/todolist"
	"github.com/idilsaglam/todosync/internal/tui"
	"github.com/idilsaglam/todosync/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Options carry everything a command needs from the root command.
type Options struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Sync
	Stdout  io.Writer
	Stderr  io.Writer
}

func (o *Options) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	if len(args) == 0 {
		PrintHelp(opt.Stderr)
		return ExitUsage
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(opt.Stdout)
		return ExitOK

	case "config":
		return doConfig(opt)

	case "ls":
		return withSession(ctx, opt, func(s *session) int { return doList(ctx, s, opt) })

	case "tui":
		return withSession(ctx, opt, func(s *session) int { return doTUI(ctx, s, opt) })

	case "add":
		if len(a) == 0 {
			ui.Fail(opt.Stderr, "usage: todo add <text...>")
			return ExitUsage
		}
		text := strings.Join(a, " ")
		if _, err := model.ValidateText(text); err != nil {
			ui.Fail(opt.Stderr, "add: "+err.Error())
			return ExitUsage
		}
		return withSession(ctx, opt, func(s *session) int { return doAdd(ctx, s, opt, text) })

	case "done", "rm":
		if len(a) != 1 {
			ui.Fail(opt.Stderr, "usage: todo "+cmd+" <index>")
			return ExitUsage
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail(opt.Stderr, cmd+": not a number: "+a[0])
			return ExitUsage
		}
		if cmd == "done" {
			return withSession(ctx, opt, func(s *session) int { return doToggle(ctx, s, opt, n) })
		}
		return withSession(ctx, opt, func(s *session) int { return doRemove(ctx, s, opt, n) })
	}

	ui.Fail(opt.Stderr, "unknown subcommand: "+cmd)
	fmt.Fprintln(opt.Stderr)
	PrintHelp(opt.Stderr)
	return ExitUsage
}

func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `todo - a todo list synced with a REST collection

Usage:
  todo [flags] <subcommand> [args]

Subcommands:
  ls                 List items
  add <text...>      Add a new item (text can be multiple words)
  done <index>       Toggle completed for item at 1-based index
  rm <index>         Remove item at 1-based index
  tui                Open the interactive list
  config             Show the effective configuration and where it came from

Flags:
  -mode optimistic|authoritative   sync discipline (default optimistic)
  -api-url URL                     remote collection (default %s)
  -store file|sqlite               local mirror backend
  -group                           group ls output by pending/done

Examples:
  todo add "Buy milk"
  todo ls
  todo -mode authoritative done 2
  todo rm 3
`, api.DefaultBaseURL)
}

// -------------- session ----------------

// session is one loaded controller plus the resources behind it.
type session struct {
	ctrl   *todolist.Controller
	mirror store.Mirror
	load   todolist.LoadResult
}

func withSession(ctx context.Context, opt Options, fn func(*session) int) int {
	s, err := openSession(ctx, opt)
	if err != nil {
		ui.Fail(opt.Stderr, err.Error())
		return ExitError
	}
	defer s.close(opt.Logger)
	return fn(s)
}

func openSession(ctx context.Context, opt Options) (*session, error) {
	cfg := opt.Config
	if cfg == nil {
		return nil, errors.New("no configuration")
	}
	p, err := todolist.PolicyFor(todolist.Mode(cfg.Mode))
	if err != nil {
		return nil, err
	}
	client, err := api.New(cfg.APIURL, api.WithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}

	s := &session{}
	if p.Mirrors() {
		if s.mirror, err = openMirror(ctx, cfg); err != nil {
			return nil, err
		}
	}
	s.ctrl = todolist.New(p, client,
		todolist.WithMirror(s.mirror),
		todolist.WithLogger(opt.Logger),
		todolist.WithMetrics(opt.Metrics),
	)
	return s, nil
}

func openMirror(ctx context.Context, cfg *config.Config) (store.Mirror, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		m, err := sqlitestore.Open(ctx, cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		return m, nil
	default:
		m, err := jsonstore.New(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open mirror: %w", err)
		}
		return m, nil
	}
}

func (s *session) open(ctx context.Context) {
	s.load = s.ctrl.Load(ctx)
}

func (s *session) close(logger *log.Logger) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Close(); err != nil {
		logger.Error("close mirror", "err", err)
	}
}

// -------------- subcommand impls ----------------

func doConfig(opt Options) int {
	cfg := opt.Config
	if cfg == nil {
		ui.Fail(opt.Stderr, "config: no configuration")
		return ExitError
	}
	t := ui.Current()
	lines := []string{t.Title.Render("Configuration"), ""}
	for _, f := range config.Fields() {
		lines = append(lines, fmt.Sprintf("%-13s %-32s %s",
			f, cfg.Value(f), t.Muted.Render("("+string(cfg.Sources[f])+")")))
	}
	if len(cfg.Files) > 0 {
		lines = append(lines, "", t.Accent.Render("Files"))
		for _, f := range cfg.Files {
			lines = append(lines, "  "+f)
		}
	}
	fmt.Fprintln(opt.Stdout, ui.Panel(lines))
	return ExitOK
}

func doList(ctx context.Context, s *session, opt Options) int {
	s.open(ctx)
	items := s.ctrl.Items()
	t := ui.Current()

	// Header + progress
	d, p := model.Stats(items)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(items),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(d, d+p, 28)))
	lines = append(lines, "")

	if opt.Config.Group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render(sourceLine(s.load)))
	fmt.Fprintln(opt.Stdout, ui.Panel(lines))
	return ExitOK
}

func doTUI(ctx context.Context, s *session, opt Options) int {
	// Load runs inside the program so the loading view is visible.
	if err := tui.Run(ctx, s.ctrl); err != nil {
		ui.Fail(opt.Stderr, "tui: "+err.Error())
		return ExitError
	}
	return ExitOK
}

func doAdd(ctx context.Context, s *session, opt Options, text string) int {
	s.open(ctx)
	before := s.ctrl.Items()
	t, err := s.ctrl.Add(text)
	if err != nil {
		ui.Fail(opt.Stderr, "add: "+err.Error())
		return ExitUsage
	}
	s.ctrl.Sync(ctx, t)
	return report(s, opt, before, "added")
}

func doToggle(ctx context.Context, s *session, opt Options, userIndex int) int {
	s.open(ctx)
	it, code := pick(s, opt, userIndex)
	if code != ExitOK {
		return code
	}
	before := s.ctrl.Items()
	s.ctrl.Sync(ctx, s.ctrl.Toggle(it.ID))
	return report(s, opt, before, "toggled")
}

func doRemove(ctx context.Context, s *session, opt Options, userIndex int) int {
	s.open(ctx)
	it, code := pick(s, opt, userIndex)
	if code != ExitOK {
		return code
	}
	before := s.ctrl.Items()
	s.ctrl.Sync(ctx, s.ctrl.Delete(it.ID))
	return report(s, opt, before, "removed")
}

// pick maps a 1-based index to an item.
func pick(s *session, opt Options, userIndex int) (model.Item, int) {
	items := s.ctrl.Items()
	if userIndex < 1 || userIndex > len(items) {
		ui.Fail(opt.Stderr, fmt.Sprintf("index out of range: have %d, got %d", len(items), userIndex))
		ui.Note(opt.Stderr, "Hint: run `todo ls` to see valid indexes")
		return model.Item{}, ExitUsage
	}
	return items[userIndex-1], ExitOK
}

// report prints msg when the list changed. An unchanged list means the
// policy rejected the change after a failed request.
func report(s *session, opt Options, before []model.Item, msg string) int {
	if model.Equal(before, s.ctrl.Items()) {
		ui.Fail(opt.Stderr, "no change: the server did not accept the request (see log)")
		return ExitError
	}
	ui.OK(opt.Stdout, msg)
	return ExitOK
}

// -------------- rendering helpers --------------

func sourceLine(res todolist.LoadResult) string {
	switch res.Source {
	case metrics.SourceRemote:
		return "Synced with server"
	case metrics.SourceMirror:
		return "Server unreachable, showing saved list"
	}
	if res.RemoteErr != nil {
		return "Server unreachable"
	}
	return "Tip: add with `todo add \"Buy milk\"`"
}

// numbered pairs an item with its 1-based position in the full list.
type numbered struct {
	n  int
	it model.Item
}

func flatLines(items []model.Item) []string {
	all := make([]numbered, 0, len(items))
	for i, it := range items {
		all = append(all, numbered{n: i + 1, it: it})
	}
	return itemLines(all, "no items")
}

func itemLines(items []numbered, empty string) []string {
	t := ui.Current()
	if len(items) == 0 {
		return []string{t.Muted.Render(empty)}
	}
	out := make([]string, 0, len(items))
	for _, e := range items {
		idx := fmt.Sprintf("%2d.", e.n)
		box := t.Muted.Render(t.BoxUnchecked)
		text := ansi.Truncate(e.it.Text, 80, "...")
		if e.it.Completed {
			box = t.Success.Render(t.BoxChecked)
			text = t.Done.Render(text)
		}
		out = append(out, fmt.Sprintf("%s %s %s", t.Muted.Render(idx), box, text))
	}
	return out
}

// groupLines keeps the full-list numbering so indexes still work with done/rm.
func groupLines(items []model.Item) []string {
	t := ui.Current()
	var pend, done []numbered
	for i, it := range items {
		e := numbered{n: i + 1, it: it}
		if it.Completed {
			done = append(done, e)
		} else {
			pend = append(pend, e)
		}
	}
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	lines = append(lines, itemLines(pend, "(none)")...)
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	lines = append(lines, itemLines(done, "(none)")...)
	return lines
}
