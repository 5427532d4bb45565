package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// handleFilterKeys feeds keys to the filter input until it is confirmed or
// cleared
func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DefaultKeyMap.Enter):
		m.filtering = false
		m.filter.Blur()
		return m, nil

	case key.Matches(msg, DefaultKeyMap.Back):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

// handleListKeys handles navigation and edits on the element list
func (m *Model) handleListKeys(msg tea.KeyMsg) tea.Cmd {
	items := m.Items()

	switch {
	case key.Matches(msg, DefaultKeyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, DefaultKeyMap.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}

	case key.Matches(msg, DefaultKeyMap.Tab):
		if m.pane == PaneNodes {
			m.pane = PaneEdges
		} else {
			m.pane = PaneNodes
		}
		m.cursor = 0

	case key.Matches(msg, DefaultKeyMap.Filter):
		m.filtering = true
		return m.filter.Focus()

	case key.Matches(msg, DefaultKeyMap.Back):
		m.filter.SetValue("")
		m.cursor = 0

	case key.Matches(msg, DefaultKeyMap.Space):
		if m.cursor < len(items) {
			m.toggleSelection(items[m.cursor])
		}

	case key.Matches(msg, DefaultKeyMap.Delete):
		if m.cursor < len(items) {
			m.deleteItem(items[m.cursor])
		}

	case key.Matches(msg, DefaultKeyMap.Save):
		return m.save()
	}
	return nil
}

func (m *Model) toggleSelection(it Item) {
	var err error
	change := flow.SelectChange{ID: it.ID, Selected: !it.Selected}
	if m.pane == PaneNodes {
		err = m.store.ApplyNodeChanges([]flow.NodeChange{change})
	} else {
		err = m.store.ApplyEdgeChanges([]flow.EdgeChange{change})
	}
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.dirty = true
	m.errorMessage = ""
	if change.Selected {
		m.statusMessage = "Selected " + it.ID
	} else {
		m.statusMessage = "Deselected " + it.ID
	}
}

// deleteItem removes the element and, for nodes, the edges connected to it
func (m *Model) deleteItem(it Item) {
	var (
		deleted flow.Deletion
		err     error
	)
	if m.pane == PaneNodes {
		deleted, err = m.store.DeleteElements([]string{it.ID}, nil)
	} else {
		deleted, err = m.store.DeleteElements(nil, []string{it.ID})
	}
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	if len(deleted.DeletedNodes) == 0 && len(deleted.DeletedEdges) == 0 {
		m.errorMessage = it.ID + " is not deletable"
		return
	}

	m.dirty = true
	m.errorMessage = ""
	m.statusMessage = fmt.Sprintf("Deleted %d nodes, %d edges", len(deleted.DeletedNodes), len(deleted.DeletedEdges))
	if n := len(m.Items()); m.cursor >= n && n > 0 {
		m.cursor = n - 1
	}
}

func (m Model) save() tea.Cmd {
	doc := m.store.ToObject()
	path := m.path
	return func() tea.Msg {
		return savedMsg{path: path, err: flow.WriteDocumentFile(doc, path)}
	}
}
