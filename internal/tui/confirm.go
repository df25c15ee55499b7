package tui

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmModel is a two-button yes/no dialog.
type ConfirmModel struct {
	title    string
	body     string
	yes      bool // button under the cursor
	answered bool
	accepted bool
	width    int
}

// NewConfirm returns a dialog with the cursor on "Deny".
func NewConfirm(title, body string) ConfirmModel {
	return ConfirmModel{title: title, body: body}
}

// Accepted reports whether the user chose "Allow".
func (m ConfirmModel) Accepted() bool { return m.answered && m.accepted }

// Answered reports whether the dialog was closed with a choice.
func (m ConfirmModel) Answered() bool { return m.answered }

func (m ConfirmModel) Init() tea.Cmd { return nil }

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.answered, m.accepted = true, true
			return m, tea.Quit
		case "n", "N", "esc", "q", "ctrl+c":
			m.answered, m.accepted = true, false
			return m, tea.Quit
		case "left", "right", "h", "l", "tab", "shift+tab":
			m.yes = !m.yes
		case "enter", " ":
			m.answered, m.accepted = true, m.yes
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.answered {
		return ""
	}
	allow, deny := buttonStyle.Render("Allow"), activeButtonStyle.Render("Deny")
	if m.yes {
		allow, deny = activeButtonStyle.Render("Allow"), buttonStyle.Render("Deny")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top, allow, "  ", deny)

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeader.Render(m.title),
		"",
		m.body,
		"",
		buttons,
		"",
		dimStyle.Render("y allow  n deny  ←/→ select  enter confirm"),
	)
	box := dialogStyle.Render(content)
	if m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, box)
	}
	return box
}

// Confirm runs the dialog on in/out until the user answers or ctx ends.
func Confirm(ctx context.Context, title, body string, in io.Reader, out io.Writer) (bool, error) {
	p := tea.NewProgram(NewConfirm(title, body),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, tea.ErrProgramKilled) {
			return false, ctxErr
		}
		return false, err
	}
	m, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}
	return m.Accepted(), nil
}
