package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	// Colors
	primaryColor   = lipgloss.Color("#ff0072") // xyflow pink
	secondaryColor = lipgloss.Color("#64748b")
	successColor   = lipgloss.Color("#10b981")
	errorColor     = lipgloss.Color("#ef4444")
	mutedColor     = lipgloss.Color("#94a3b8")

	baseStyle = lipgloss.NewStyle().
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Foreground(primaryColor).
			Bold(true).
			Underline(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(successColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// View renders the inspector
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := "vflow " + m.path
	if m.dirty {
		title += " *"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}

	b.WriteString(boxStyle.Render(m.renderList()))
	b.WriteString("\n")

	switch {
	case m.errorMessage != "":
		b.WriteString(errorStyle.Render(m.errorMessage))
	case m.statusMessage != "":
		b.WriteString(successStyle.Render(m.statusMessage))
	}

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderHelp())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return baseStyle.Render(b.String())
}

func (m Model) renderTabs() string {
	nodes := fmt.Sprintf("Nodes (%d)", len(m.store.Nodes()))
	edges := fmt.Sprintf("Edges (%d)", len(m.store.Edges()))
	if m.pane == PaneNodes {
		return lipgloss.JoinHorizontal(lipgloss.Top, activeTabStyle.Render(nodes), tabStyle.Render(edges))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabStyle.Render(nodes), activeTabStyle.Render(edges))
}

// renderList renders the rows around the cursor that fit the window
func (m Model) renderList() string {
	items := m.Items()
	if len(items) == 0 {
		return mutedStyle.Render("nothing to show")
	}

	start, end := 0, len(items)
	if rows := m.height - 12; rows > 0 && len(items) > rows {
		start = m.cursor - rows/2
		if start < 0 {
			start = 0
		}
		end = start + rows
		if end > len(items) {
			end = len(items)
			start = end - rows
		}
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		it := items[i]
		mark := "[ ]"
		if it.Selected {
			mark = selectedStyle.Render("[x]")
		}
		line := fmt.Sprintf("%s %-12s %-20s %s", mark, it.ID, it.Label, mutedStyle.Render(it.Detail))
		if i == m.cursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	k := DefaultKeyMap
	bindings := []struct{ keys, desc string }{
		{k.Up.Help().Key + " " + k.Down.Help().Key, "move"},
		{k.Tab.Help().Key, k.Tab.Help().Desc},
		{k.Space.Help().Key, k.Space.Help().Desc},
		{k.Delete.Help().Key, k.Delete.Help().Desc},
		{k.Filter.Help().Key, k.Filter.Help().Desc},
		{k.Save.Help().Key, k.Save.Help().Desc},
		{k.Quit.Help().Key, k.Quit.Help().Desc},
	}
	lines := make([]string, len(bindings))
	for i, h := range bindings {
		lines[i] = fmt.Sprintf("%-8s %s", h.keys, h.desc)
	}
	return mutedStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	var keys []string
	if m.filtering {
		keys = []string{"Enter: Apply", "Esc: Clear"}
	} else {
		keys = []string{"↑/↓: Move", "Space: Select", "d: Delete", "s: Save", "/: Filter", "q: Quit", "?: Help"}
	}
	return footerStyle.Render(strings.Join(keys, " • "))
}
