package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/store"
)

// Pane is the element list the inspector shows
type Pane int

const (
	PaneNodes Pane = iota
	PaneEdges
)

// Item is one row of the inspector list
type Item struct {
	ID       string
	Label    string
	Detail   string
	Selected bool
}

// Model is the flow inspector state. Every edit goes through the store as
// select or remove changes.
type Model struct {
	width  int
	height int

	store *store.Store
	path  string
	pane  Pane

	cursor    int
	filter    textinput.Model
	filtering bool

	dirty    bool
	showHelp bool
	quitting bool

	statusMessage string
	errorMessage  string
}

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Tab    key.Binding
	Space  key.Binding
	Delete key.Binding
	Save   key.Binding
	Filter key.Binding
	Enter  key.Binding
	Back   key.Binding
	Quit   key.Binding
	Help   key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "nodes/edges"),
	),
	Space: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "toggle selection"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "delete"),
	),
	Save: key.NewBinding(
		key.WithKeys("s", "ctrl+s"),
		key.WithHelp("s", "save"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply filter"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// Messages
type savedMsg struct {
	path string
	err  error
}

// NewModel creates an inspector over s. Saving writes to path.
func NewModel(s *store.Store, path string) Model {
	filter := textinput.New()
	filter.Placeholder = "id or label"
	filter.Prompt = "/ "
	filter.CharLimit = 64
	filter.Width = 30

	return Model{
		store:  s,
		path:   path,
		filter: filter,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("Save failed: %v", msg.err)
			return m, nil
		}
		m.dirty = false
		m.errorMessage = ""
		m.statusMessage = "Saved " + msg.path
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKeys(msg)
		}
		if key.Matches(msg, DefaultKeyMap.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if key.Matches(msg, DefaultKeyMap.Help) {
			m.showHelp = !m.showHelp
			return m, nil
		}
		cmd := m.handleListKeys(msg)
		return m, cmd
	}

	return m, nil
}

// Items returns the rows of the current pane after filtering
func (m Model) Items() []Item {
	var items []Item
	switch m.pane {
	case PaneNodes:
		for _, n := range m.store.Nodes() {
			items = append(items, Item{
				ID:       n.ID,
				Label:    label(n.Data),
				Detail:   fmt.Sprintf("(%g, %g)", n.Position.X, n.Position.Y),
				Selected: n.Selected,
			})
		}
	case PaneEdges:
		for _, e := range m.store.Edges() {
			items = append(items, Item{
				ID:       e.ID,
				Label:    label(e.Data),
				Detail:   e.Source + " → " + e.Target,
				Selected: e.Selected,
			})
		}
	}

	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if query == "" {
		return items
	}
	filtered := items[:0]
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.ID), query) || strings.Contains(strings.ToLower(it.Label), query) {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

// Pane returns the pane being shown
func (m Model) Pane() Pane {
	return m.pane
}

// Cursor returns the highlighted row
func (m Model) Cursor() int {
	return m.cursor
}

// Dirty reports whether there are unsaved edits
func (m Model) Dirty() bool {
	return m.dirty
}

func label(data flow.Data) string {
	if data == nil {
		return ""
	}
	if v, ok := data["label"]; ok {
		return fmt.Sprint(v)
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
