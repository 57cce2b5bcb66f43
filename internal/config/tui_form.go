package config

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// FormModel shows the effective configuration. Streaming can be toggled
// with "s" and written back with "w".
type FormModel struct {
	cfg    *Config
	path   string
	status string
}

func NewFormModel(cfg *Config, path string) *FormModel {
	return &FormModel{cfg: cfg, path: path}
}

func (m *FormModel) Init() tea.Cmd {
	return nil
}

func (m *FormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s":
			m.cfg.Playground.Streaming = !m.cfg.Playground.Streaming
			m.status = ""
		case "w":
			if err := m.cfg.SaveTo(m.path); err != nil {
				m.status = "save failed: " + err.Error()
			} else {
				m.status = "saved to " + m.path
			}
		}
	}
	return m, nil
}

func (m *FormModel) View() string {
	s := titleStyle.Render("Playground Configuration") + "\n\n"
	s += itemStyle.Render(fmt.Sprintf("Backend:     %s", m.cfg.Backend.BaseURL)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Connections: %s", m.cfg.Backend.ConnectionsPath)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Chat:        %s", m.cfg.Backend.ChatPath)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Project:     %s", orDash(m.cfg.Project.ID))) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Streaming:   %t", m.cfg.Playground.Streaming)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Temperature: %.2f", m.cfg.Playground.Temperature)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Database:    %s", m.cfg.State.DBPath)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Log:         %s (%s)", m.cfg.Log.File, m.cfg.Log.Level)) + "\n"
	if m.status != "" {
		s += "\n" + itemStyle.Render(m.status) + "\n"
	}
	s += "\n" + hintStyle.Render("s toggle streaming • w save • q quit") + "\n"
	return lipgloss.NewStyle().Padding(1, 2).Render(s)
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

func RunConfigForm(cfg *Config, path string) error {
	p := tea.NewProgram(NewFormModel(cfg, path))
	_, err := p.Run()
	return err
}
