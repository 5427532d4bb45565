package ui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
	"github.com/sdelrio0/xyflow-flow/pkg/store"
)

func newTestModel(t *testing.T) (Model, *store.Store, string) {
	t.Helper()
	s := store.New(flow.Document{
		Nodes: []flow.Node{
			{ID: "a", Data: flow.Data{"label": "Input"}},
			{ID: "b", Data: flow.Data{"label": "Worker"}},
			{ID: "c", Data: flow.Data{"label": "Output"}},
		},
		Edges: []flow.Edge{
			{ID: "a-b", Source: "a", Target: "b"},
			{ID: "b-c", Source: "b", Target: "c"},
		},
	})
	t.Cleanup(s.Close)
	path := filepath.Join(t.TempDir(), "flow.json")
	return NewModel(s, path), s, path
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_Navigation(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = press(t, m, "j", "j", "j")
	if m.Cursor() != 2 {
		t.Errorf("cursor = %d, want 2 (clamped)", m.Cursor())
	}
	m = press(t, m, "k")
	if m.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", m.Cursor())
	}

	m = press(t, m, "tab")
	if m.Pane() != PaneEdges || m.Cursor() != 0 {
		t.Errorf("pane = %v cursor = %d, want edges at 0", m.Pane(), m.Cursor())
	}
	if got := len(m.Items()); got != 2 {
		t.Errorf("edge rows = %d, want 2", got)
	}
}

func TestModel_ToggleSelection(t *testing.T) {
	m, s, _ := newTestModel(t)

	m = press(t, m, "j", " ")
	if n, _ := s.Node("b"); !n.Selected {
		t.Fatal("node b should be selected")
	}
	if !m.Dirty() {
		t.Error("model should be dirty after an edit")
	}

	m = press(t, m, " ")
	if n, _ := s.Node("b"); n.Selected {
		t.Error("second toggle should deselect node b")
	}

	m = press(t, m, "tab", " ")
	if e, _ := s.Edge("a-b"); !e.Selected {
		t.Error("edge a-b should be selected")
	}
}

func TestModel_DeleteRemovesConnectedEdges(t *testing.T) {
	m, s, _ := newTestModel(t)

	m = press(t, m, "j", "d")
	if _, ok := s.Node("b"); ok {
		t.Fatal("node b should be deleted")
	}
	if got := len(s.Edges()); got != 0 {
		t.Errorf("edges = %d, want 0 after deleting their shared node", got)
	}
	if !strings.Contains(m.statusMessage, "1 nodes, 2 edges") {
		t.Errorf("status = %q", m.statusMessage)
	}

	m = press(t, m, "j", "d")
	if got := len(s.Nodes()); got != 1 {
		t.Errorf("nodes = %d, want 1", got)
	}
	if m.Cursor() != 0 {
		t.Errorf("cursor = %d, want it clamped to the last row", m.Cursor())
	}
}

func TestModel_DeleteRespectsDeletable(t *testing.T) {
	m, s, _ := newTestModel(t)
	if err := s.SetNodes([]flow.Node{{ID: "locked", Deletable: flow.Bool(false)}}); err != nil {
		t.Fatal(err)
	}

	m = press(t, m, "d")
	if _, ok := s.Node("locked"); !ok {
		t.Fatal("non-deletable node was removed")
	}
	if m.errorMessage == "" {
		t.Error("expected an error message")
	}
}

func TestModel_Filter(t *testing.T) {
	m, _, _ := newTestModel(t)

	m = press(t, m, "/", "w", "o", "r", "enter")
	items := m.Items()
	if len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("filtered rows = %+v, want only b", items)
	}

	// Keys act on the filtered list once the filter is applied
	m = press(t, m, " ")
	if !m.Items()[0].Selected {
		t.Error("filtered row should be selected")
	}

	m = press(t, m, "esc")
	if got := len(m.Items()); got != 3 {
		t.Errorf("rows after clearing = %d, want 3", got)
	}
}

func TestModel_Save(t *testing.T) {
	m, _, path := newTestModel(t)
	m = press(t, m, " ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("save should return a command")
	}
	next, _ = m.Update(cmd())
	m = next.(Model)

	if m.Dirty() {
		t.Error("model should be clean after saving")
	}
	doc, err := flow.ReadDocumentFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 3 || !doc.Nodes[0].Selected {
		t.Errorf("saved document = %+v", doc.Nodes)
	}
}

func TestModel_View(t *testing.T) {
	m, _, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"Nodes (3)", "Edges (2)", "Worker"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = press(t, m, "q")
	if m.View() != "" {
		t.Error("view should be empty after quitting")
	}
}
