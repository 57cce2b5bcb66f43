package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sbBaseStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
	sbProjectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sbCountStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sbRoleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sbNoticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Italic(true)
	sbBusyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// StatusBarModel is the toolbar line under the panels.
type StatusBarModel struct {
	Project string
	Windows int
	Running int
	Role    string
	Notice  string
	width   int
}

func NewStatusBarModel() *StatusBarModel {
	return &StatusBarModel{Project: "<missing>", Windows: 1, Role: "user"}
}

func (m *StatusBarModel) SetWidth(w int) { m.width = w }

func (m *StatusBarModel) SetNotice(msg string) {
	m.Notice = strings.TrimSpace(strings.ReplaceAll(msg, "\n", " "))
}

func windowsLabel(n int) string {
	if n == 1 {
		return "1 window"
	}
	return fmt.Sprintf("%d windows", n)
}

func (m *StatusBarModel) View() string {
	parts := []string{
		sbProjectStyle.Render("[PROJECT: " + m.Project + "]"),
		sbCountStyle.Render("[" + windowsLabel(m.Windows) + "]"),
		sbRoleStyle.Render("[ROLE: " + strings.ToUpper(m.Role) + "]"),
	}
	if m.Running > 0 {
		parts = append(parts, sbBusyStyle.Render(fmt.Sprintf("[RUNNING: %d]", m.Running)))
	}
	left := strings.Join(parts, " | ")

	if m.Notice != "" {
		room := m.width - lipgloss.Width(left) - 5
		if room > 8 {
			left += " | " + sbNoticeStyle.Render(truncate(m.Notice, room))
		}
	}
	return sbBaseStyle.Width(m.width).Render(left)
}
