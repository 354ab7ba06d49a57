// Package tui is the interactive bubbletea front end for a todolist.Controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/todolist"
	"github.com/idilsaglam/todosync/internal/ui"
)

const (
	loadingText = "Initializing..."
	emptyText   = "No todos yet. Add one above!"
)

// loadedMsg arrives once the startup load finished.
type loadedMsg struct {
	result todolist.LoadResult
}

// settledMsg carries a finished remote call back to Update.
type settledMsg struct {
	result todolist.Result
}

// Model is the bubbletea model. All controller mutations happen in Update;
// remote calls run inside commands.
type Model struct {
	ctx  context.Context
	ctrl *todolist.Controller
	keys keyMap

	list    list.Model
	input   textinput.Model
	spinner spinner.Model

	adding bool
	addErr string
	width  int
	height int
}

// New builds a Model around ctrl. ctx is handed to every remote call.
func New(ctx context.Context, ctrl *todolist.Controller) Model {
	keys := defaultKeyMap()

	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = "Todos"
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = ui.Current().Title
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.KeyMap.NextPage.SetKeys("right", "l", "pgdown", "f")
	l.KeyMap.Quit.SetKeys("q")
	extra := func() []key.Binding { return []key.Binding{keys.Add, keys.Toggle, keys.Delete} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.Current().Accent

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		keys:    keys,
		list:    l,
		input:   ti,
		spinner: sp,
		width:   80,
		height:  24,
	}
}

// Run starts the program on the alternate screen and blocks until the user
// quits. Requests still in flight at that point are abandoned.
func Run(ctx context.Context, ctrl *todolist.Controller, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(New(ctx, ctrl), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return loadedMsg{result: ctrl.Load(ctx)}
	}
}

func (m Model) run(t *todolist.Task) tea.Cmd {
	if t == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return settledMsg{result: t.Run(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.refresh()
		return m, nil

	case settledMsg:
		m.ctrl.Settle(msg.result)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateBrowsing(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Submit):
		t, err := m.ctrl.Add(m.input.Value())
		if err != nil {
			m.addErr = "Text cannot be empty"
			return m, nil
		}
		m.stopAdding()
		m.refresh()
		return m, m.run(t)
	case key.Matches(msg, m.keys.Cancel):
		m.stopAdding()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.addErr = ""
	return m, cmd
}

func (m Model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case m.ctrl.Loading():
		return m, nil
	case key.Matches(msg, m.keys.Add):
		m.adding = true
		m.addErr = ""
		m.input.SetValue("")
		m.resize()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Toggle):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		t := m.ctrl.Toggle(it.ID)
		m.refresh()
		return m, m.run(t)
	case key.Matches(msg, m.keys.Delete):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		t := m.ctrl.Delete(it.ID)
		m.refresh()
		return m, m.run(t)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) stopAdding() {
	m.adding = false
	m.addErr = ""
	m.input.SetValue("")
	m.input.Blur()
	m.resize()
}

func (m Model) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.item, true
}

// refresh copies the controller's list into the widget, keeping the cursor
// in range.
func (m *Model) refresh() {
	items := m.ctrl.Items()
	idx := m.list.Index()
	m.list.SetItems(toListItems(items))
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
	m.list.Title = m.title(items)
}

func (m *Model) resize() {
	// header, input box and status line
	reserved := 4
	if m.adding {
		reserved += 4
	}
	h := m.height - reserved
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) title(items []model.Item) string {
	t := ui.Current()
	done, pending := model.Stats(items)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), done,
		t.Pending.Render(t.SymPending), pending,
		t.Accent.Render("Total"), len(items),
	)
}

func (m Model) View() string {
	if m.ctrl.Loading() {
		return ui.Panel([]string{m.spinner.View() + " " + loadingText})
	}

	t := ui.Current()
	var sections []string
	if m.adding {
		label := "Add new item"
		if m.addErr != "" {
			label += "  " + t.Error.Render(m.addErr)
		}
		box := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderColor).
			Padding(0, 1)
		sections = append(sections, box.Render(label+"\n"+m.input.View()))
	}

	if len(m.list.Items()) == 0 {
		sections = append(sections,
			m.title(nil),
			"",
			t.Muted.Render(emptyText),
			"",
			helpStyle.Render("a add • q quit"),
		)
	} else {
		sections = append(sections, m.list.View())
	}
	sections = append(sections, m.statusLine())
	return ui.Panel([]string{strings.Join(sections, "\n")})
}

func (m Model) statusLine() string {
	t := ui.Current()
	mode := string(m.ctrl.Policy().Mode())
	n := m.ctrl.Pending()
	if n == 0 {
		return t.Muted.Render(mode + " • in sync")
	}
	return t.Muted.Render(mode+" • ") + m.spinner.View() + t.Pending.Render(fmt.Sprintf(" %d pending", n))
}
