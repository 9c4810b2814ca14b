package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/compgraph/pkg/component"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// NodePickerModel - Interactive root selection
// =============================================================================

// NodePickerModel is the bubbletea model for choosing export roots.
// Space toggles a node; enter confirms the marked nodes, or the node under
// the cursor when none is marked.
type NodePickerModel struct {
	Nodes     []component.Summary
	Cursor    int
	Marked    map[int]bool
	Height    int
	Offset    int
	Confirmed bool
}

// NewNodePickerModel creates a picker over nodes.
func NewNodePickerModel(nodes []component.Summary) NodePickerModel {
	return NodePickerModel{
		Nodes:  nodes,
		Marked: make(map[int]bool),
		Height: 15,
	}
}

func (m NodePickerModel) Init() tea.Cmd {
	return nil
}

func (m NodePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Nodes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Nodes) > 0 {
				m.Marked[m.Cursor] = !m.Marked[m.Cursor]
			}
		case "enter":
			if len(m.Nodes) == 0 {
				return m, tea.Quit
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

// Selected returns the ids chosen when the picker was confirmed.
func (m NodePickerModel) Selected() []string {
	if !m.Confirmed {
		return nil
	}
	var ids []string
	for i, n := range m.Nodes {
		if m.Marked[i] {
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 && m.Cursor < len(m.Nodes) {
		ids = []string{m.Nodes[m.Cursor].ID}
	}
	return ids
}

func (m NodePickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Export Roots"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space mark  ⏎ export  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Nodes))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		n := m.Nodes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := " "
		if m.Marked[i] {
			mark = iconSuccess
		}
		rows = append(rows, []string{cursor, mark, n.DisplayName, n.TypeID, fmt.Sprint(n.ChildCount), shortID(n.ID)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Name", "Type", "Children", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case m.Marked[idx]:
				return listNormalStyle
			default:
				return listDimStyle
			}
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] %d marked", m.Cursor+1, len(m.Nodes), m.markedCount())))

	return b.String()
}

func (m NodePickerModel) markedCount() int {
	n := 0
	for _, v := range m.Marked {
		if v {
			n++
		}
	}
	return n
}

// pickRoots runs the picker and returns the chosen ids; nil when cancelled.
func pickRoots(nodes []component.Summary) ([]string, error) {
	final, err := tea.NewProgram(NewNodePickerModel(nodes)).Run()
	if err != nil {
		return nil, err
	}
	fm, ok := final.(NodePickerModel)
	if !ok {
		return nil, nil
	}
	return fm.Selected(), nil
}

// shortID trims uuids for display.
func shortID(id string) string {
	if len(id) > 13 {
		return id[:13] + "…"
	}
	return id
}
