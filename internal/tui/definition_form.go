package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/playground/internal/playground"
)

var (
	defModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("75")).
				Background(lipgloss.Color("235")).
				Padding(1, 2)
	defModalTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Bold(true)
	defModalHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	defModalLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	defModalFocusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	defModalErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const (
	defFieldName = iota
	defFieldDescription
	defFieldParameters
	defFieldCount
)

// DefinitionAction carries the definition created by the form.
type DefinitionAction struct {
	Created    bool
	Definition playground.Definition
}

// DefinitionForm creates a tool or structured-output schema.
type DefinitionForm struct {
	Visible bool
	Kind    playground.DefinitionKind
	PanelID string
	Err     string

	focus       int
	width       int
	height      int
	name        textinput.Model
	description textinput.Model
	parameters  textarea.Model
}

func NewDefinitionForm() *DefinitionForm {
	name := textinput.New()
	name.Prompt = ""
	name.CharLimit = 128
	desc := textinput.New()
	desc.Prompt = ""
	desc.CharLimit = 512

	ta := textarea.New()
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(10)
	return &DefinitionForm{name: name, description: desc, parameters: ta}
}

func (m *DefinitionForm) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width = width
	m.height = height
	bodyWidth := max(36, width-12)
	m.name.Width = bodyWidth
	m.description.Width = bodyWidth
	m.parameters.SetWidth(bodyWidth)
	m.parameters.SetHeight(max(6, height-22))
}

// Open shows an empty form for kind. The created definition is attached to
// panelID.
func (m *DefinitionForm) Open(kind playground.DefinitionKind, panelID string) {
	m.Visible = true
	m.Kind = kind
	m.PanelID = panelID
	m.Err = ""
	m.name.SetValue("")
	m.description.SetValue("")
	m.parameters.SetValue(playground.DefaultParameters)
	m.focus = defFieldName
	m.syncFocus()
}

func (m *DefinitionForm) Close() {
	m.Visible = false
	m.PanelID = ""
	m.Err = ""
	m.name.Blur()
	m.description.Blur()
	m.parameters.Blur()
}

func (m *DefinitionForm) Update(msg tea.Msg) (DefinitionAction, tea.Cmd) {
	if !m.Visible {
		return DefinitionAction{}, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab":
			m.focus = (m.focus + 1) % defFieldCount
			m.syncFocus()
			return DefinitionAction{}, nil
		case "shift+tab":
			m.focus = (m.focus + defFieldCount - 1) % defFieldCount
			m.syncFocus()
			return DefinitionAction{}, nil
		case "ctrl+r":
			m.parameters.SetValue(playground.DefaultParameters)
			return DefinitionAction{}, nil
		case "ctrl+s":
			def, err := playground.NewDefinition(m.Kind, m.name.Value(), m.description.Value(), m.parameters.Value())
			if err != nil {
				m.Err = err.Error()
				return DefinitionAction{}, nil
			}
			return DefinitionAction{Created: true, Definition: def}, nil
		case "enter":
			if m.focus != defFieldParameters {
				m.focus++
				m.syncFocus()
				return DefinitionAction{}, nil
			}
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case defFieldName:
		m.name, cmd = m.name.Update(msg)
	case defFieldDescription:
		m.description, cmd = m.description.Update(msg)
	default:
		m.parameters, cmd = m.parameters.Update(msg)
	}
	return DefinitionAction{}, cmd
}

func (m *DefinitionForm) syncFocus() {
	m.name.Blur()
	m.description.Blur()
	m.parameters.Blur()
	switch m.focus {
	case defFieldName:
		m.name.Focus()
	case defFieldDescription:
		m.description.Focus()
	default:
		m.parameters.Focus()
	}
}

func (m *DefinitionForm) label(field int, text string) string {
	if field == m.focus {
		return defModalFocusStyle.Render(text)
	}
	return defModalLabelStyle.Render(text)
}

func (m *DefinitionForm) View() string {
	if !m.Visible {
		return ""
	}
	title := "Create Tool"
	if m.Kind == playground.KindSchema {
		title = "Create Schema"
	}
	parts := []string{
		defModalTitleStyle.Render(title),
		"",
		m.label(defFieldName, "Name"),
		m.name.View(),
		"",
		m.label(defFieldDescription, "Description"),
		m.description.View(),
		"",
		m.label(defFieldParameters, "Parameters (JSON Schema)"),
		m.parameters.View(),
	}
	if m.Err != "" {
		parts = append(parts, "", defModalErrStyle.Render(m.Err))
	}
	parts = append(parts, "", defModalHintStyle.Render(fmt.Sprintf("tab: next field  ctrl+r: reset parameters  ctrl+s: create %s  esc: cancel", strings.ToLower(string(m.Kind)))))
	return defModalBoxStyle.Render(strings.Join(parts, "\n"))
}
