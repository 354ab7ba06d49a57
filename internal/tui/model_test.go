package tui

import (
	"context"
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todosync/internal/api"
	"github.com/idilsaglam/todosync/internal/api/apitest"
	"github.com/idilsaglam/todosync/internal/logging"
	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store/jsonstore"
	"github.com/idilsaglam/todosync/internal/todolist"
)

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func newModel(t *testing.T, mode todolist.Mode, seed ...model.Item) (Model, *apitest.Server) {
	t.Helper()
	srv := apitest.New(t, seed...)
	client, err := api.New(srv.CollectionURL())
	if err != nil {
		t.Fatal(err)
	}
	mirror, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, err := todolist.PolicyFor(mode)
	if err != nil {
		t.Fatal(err)
	}
	ctrl := todolist.New(p, client, todolist.WithMirror(mirror), todolist.WithLogger(logging.Discard()))
	m := New(context.Background(), ctrl)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, srv
}

// load runs the startup command the way the program would.
func load(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, m.load()())
	return m
}

// settle runs a mutation command and feeds its result back.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if _, ok := msg.(settledMsg); !ok {
		t.Fatalf("command produced %T, want settledMsg", msg)
	}
	m, _ = update(t, m, msg)
	return m
}

func addItem(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m, _ = update(t, m, keyPress("a"))
	if !m.adding {
		t.Fatal("a did not open the add box")
	}
	m, _ = update(t, m, keyPress(text))
	return update(t, m, keyPress("enter"))
}

func TestLoadingThenEmptyState(t *testing.T) {
	m, _ := newModel(t, todolist.ModeOptimistic)
	if v := m.View(); !strings.Contains(v, loadingText) {
		t.Errorf("view before load = %q, want %q", v, loadingText)
	}
	m = load(t, m)
	if v := m.View(); !strings.Contains(v, emptyText) {
		t.Errorf("view after load = %q, want %q", v, emptyText)
	}
}

func TestKeysIgnoredWhileLoading(t *testing.T) {
	m, _ := newModel(t, todolist.ModeOptimistic)
	m, cmd := update(t, m, keyPress("a"))
	if m.adding || cmd != nil {
		t.Error("add should be disabled while loading")
	}
}

func TestOptimisticAddShowsImmediately(t *testing.T) {
	m, srv := newModel(t, todolist.ModeOptimistic)
	m = load(t, m)

	m, cmd := addItem(t, m, "Buy milk")
	if m.adding {
		t.Error("add box should close after enter")
	}
	items := m.ctrl.Items()
	if len(items) != 1 || items[0].Text != "Buy milk" || items[0].Completed {
		t.Fatalf("items = %+v", items)
	}
	if v := m.View(); !strings.Contains(v, "Buy milk") || !strings.Contains(v, "1 pending") {
		t.Errorf("view = %q", v)
	}

	m = settle(t, m, cmd)
	if m.ctrl.Pending() != 0 {
		t.Errorf("pending = %d after settle", m.ctrl.Pending())
	}
	if got := srv.Items(); len(got) != 1 || got[0].Text != "Buy milk" {
		t.Errorf("server items = %+v", got)
	}
}

func TestAuthoritativeWaitsForServer(t *testing.T) {
	m, _ := newModel(t, todolist.ModeAuthoritative)
	m = load(t, m)

	m, cmd := addItem(t, m, "Buy milk")
	if n := len(m.ctrl.Items()); n != 0 {
		t.Fatalf("items before settle = %d, want 0", n)
	}
	if v := m.View(); !strings.Contains(v, emptyText) {
		t.Errorf("view before settle = %q", v)
	}
	m = settle(t, m, cmd)
	items := m.ctrl.Items()
	if len(items) != 1 || items[0].ID == "" {
		t.Fatalf("items after settle = %+v", items)
	}

	m, cmd = update(t, m, keyPress(" "))
	if m.ctrl.Items()[0].Completed {
		t.Error("toggle applied before the server answered")
	}
	m = settle(t, m, cmd)
	if !m.ctrl.Items()[0].Completed {
		t.Error("toggle not applied after success")
	}

	m, cmd = update(t, m, keyPress("d"))
	m = settle(t, m, cmd)
	if n := len(m.ctrl.Items()); n != 0 {
		t.Errorf("items after delete = %d", n)
	}
}

func TestOptimisticIgnoresFailures(t *testing.T) {
	seed := []model.Item{{ID: "1", Text: "Buy milk"}}
	m, srv := newModel(t, todolist.ModeOptimistic, seed...)
	m = load(t, m)
	srv.FailWith(http.StatusInternalServerError)

	m, cmd := update(t, m, keyPress("enter"))
	m = settle(t, m, cmd)
	if !m.ctrl.Items()[0].Completed {
		t.Error("optimistic toggle should survive a failed request")
	}

	m, cmd = update(t, m, keyPress("d"))
	m = settle(t, m, cmd)
	if n := len(m.ctrl.Items()); n != 0 {
		t.Errorf("items after delete = %d", n)
	}
	if v := m.View(); !strings.Contains(v, emptyText) {
		t.Errorf("view = %q", v)
	}
}

func TestEmptyAddKeepsBoxOpen(t *testing.T) {
	m, _ := newModel(t, todolist.ModeOptimistic)
	m = load(t, m)

	m, cmd := addItem(t, m, "   ")
	if !m.adding || cmd != nil {
		t.Fatal("blank text should keep the add box open without a request")
	}
	if !strings.Contains(m.View(), "Text cannot be empty") {
		t.Error("missing validation message")
	}
	m, _ = update(t, m, keyPress("esc"))
	if m.adding {
		t.Error("esc should close the add box")
	}
}

func TestToggleOnEmptyListIsNoop(t *testing.T) {
	m, srv := newModel(t, todolist.ModeOptimistic)
	m = load(t, m)
	_, cmd := update(t, m, keyPress(" "))
	if cmd != nil {
		t.Error("toggle on an empty list should not start a request")
	}
	for _, r := range srv.Requests() {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.Path)
		}
	}
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t, todolist.ModeOptimistic)
	_, cmd := update(t, m, keyPress("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
