package tui

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fr4iser90/FoundryCord-sub001/internal/snapshot"
)

// Model is the snapshot viewer: a summary tab followed by one tab per
// collector result.
type Model struct {
	snap      *snapshot.Snapshot
	filename  string
	tabs      []string
	activeTab int
	viewports []viewport.Model
	width     int
	height    int
	ready     bool
}

// New creates a viewer for s loaded from filename.
func New(s *snapshot.Snapshot, filename string) Model {
	return Model{
		snap:     s,
		filename: filepath.Base(filename),
		tabs:     append([]string{"Summary"}, s.Names()...),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % len(m.tabs)
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + len(m.tabs)) % len(m.tabs)
			return m, nil
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  statebridge  " + m.filename)

	var tabParts []string
	for i, name := range m.tabs {
		label := fmt.Sprintf(" %s ", name)
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < len(m.tabs)-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  q quit"
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.tabs {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) renderTab(i int) string {
	if i == 0 {
		return m.renderSummary()
	}
	return m.renderResult(m.tabs[i])
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	var sb strings.Builder
	sb.WriteString(heading("Snapshot Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Captured:", m.snap.Time().Format("2006-01-02 15:04:05 MST"))
	row("Collectors:", fmt.Sprintf("%d", len(m.tabs)-1))

	sb.WriteString(heading("Results"))
	if len(m.tabs) == 1 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for _, name := range m.tabs[1:] {
		status := "ok"
		if m.snap.Failed(name) {
			r, _ := m.snap.Result(name)
			e, _ := r.Get("error")
			status = errorStyle.Render(e.Str())
		}
		row(name, status)
	}
	return sb.String()
}

func (m *Model) renderResult(name string) string {
	var sb strings.Builder
	sb.WriteString(heading(name))
	r, _ := m.snap.Result(name)
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		sb.WriteString(errorStyle.Render("  "+err.Error()) + "\n")
		return sb.String()
	}
	sb.WriteString(indent(string(body), "  "))
	sb.WriteString("\n")
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Run starts the viewer for the given snapshot.
func Run(s *snapshot.Snapshot, filename string) error {
	p := tea.NewProgram(New(s, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
