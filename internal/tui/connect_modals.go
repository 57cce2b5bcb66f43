package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/playground/internal/providers"
)

var (
	connectModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205")).
				Background(lipgloss.Color("235")).
				Padding(1, 2)
	connectTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	connectHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	connectSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	connectItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	connectOffStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	connectErrStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type SelectOption struct {
	Label   string
	Value   string
	Marked  bool
	Enabled bool
}

// SelectModal is a single-choice list used by pickers.
type SelectModal struct {
	Title    string
	Hint     string
	Visible  bool
	Selected int
	Options  []SelectOption
	MaxWidth int
}

func NewSelectModal(title, hint string) *SelectModal {
	return &SelectModal{Title: title, Hint: hint, Selected: -1}
}

func (m *SelectModal) SetOptions(options []SelectOption) {
	m.Options = append([]SelectOption(nil), options...)
	m.Selected = m.firstEnabledIndex()
}

func (m *SelectModal) firstEnabledIndex() int {
	for i, opt := range m.Options {
		if opt.Enabled {
			return i
		}
	}
	return -1
}

func (m *SelectModal) Open() {
	m.Visible = true
	if m.Selected < 0 || m.Selected >= len(m.Options) || !m.Options[m.Selected].Enabled {
		m.Selected = m.firstEnabledIndex()
	}
}

func (m *SelectModal) SetWidth(width int) { m.MaxWidth = width }

func (m *SelectModal) Close() { m.Visible = false }

func (m *SelectModal) Move(delta int) {
	if len(m.Options) == 0 || m.Selected < 0 {
		return
	}
	for next := m.Selected + delta; next >= 0 && next < len(m.Options); next += delta {
		if m.Options[next].Enabled {
			m.Selected = next
			return
		}
	}
}

// SelectValue moves the cursor to the option carrying value.
func (m *SelectModal) SelectValue(value string) {
	for i, opt := range m.Options {
		if opt.Value == value && opt.Enabled {
			m.Selected = i
			return
		}
	}
}

func (m *SelectModal) SelectedOption() (SelectOption, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Options) {
		return SelectOption{}, false
	}
	opt := m.Options[m.Selected]
	if !opt.Enabled {
		return SelectOption{}, false
	}
	return opt, true
}

func (m *SelectModal) View() string {
	if !m.Visible {
		return ""
	}
	contentWidth := modalContentWidth(m.MaxWidth)
	var lines []string
	for i, opt := range m.Options {
		prefix := "  "
		style := connectItemStyle
		if !opt.Enabled {
			style = connectOffStyle
		}
		if i == m.Selected {
			prefix = "> "
			style = connectSelStyle
		}
		label := opt.Label
		if opt.Marked {
			label = "✓ " + label
		}
		lines = append(lines, style.Render(wrapWithPrefix(prefix, label, contentWidth)))
	}
	if len(lines) == 0 {
		lines = append(lines, connectOffStyle.Render("Nothing to choose from."))
	}

	title, hint := m.Title, m.Hint
	if contentWidth > 0 {
		title = wrapToWidth(title, contentWidth)
		hint = wrapToWidth(hint, contentWidth)
	}
	boxStyle := connectModalBoxStyle
	if m.MaxWidth > 0 {
		boxStyle = boxStyle.MaxWidth(m.MaxWidth)
	}
	return boxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s",
		connectTitleStyle.Render(title),
		strings.Join(lines, "\n"),
		connectHintStyle.Render(hint),
	))
}

const (
	connFieldProvider = iota
	connFieldAdapter
	connFieldBaseURL
	connFieldSecret
	connFieldModels
	connFieldCount
)

var connFieldLabels = [connFieldCount]string{"Provider", "Adapter", "Base URL", "API key", "Custom models (comma separated)"}

// ConnectionAction is returned by ConnectionForm.Update when the user
// submits a valid form.
type ConnectionAction struct {
	Submitted  bool
	Connection providers.NewConnection
}

// ConnectionForm collects a new LLM connection for the current project.
type ConnectionForm struct {
	Visible  bool
	PanelID  string
	Preset   ProviderCatalog
	Saving   bool
	Err      string
	MaxWidth int

	withDefaults bool
	focus        int
	inputs       [connFieldCount]textinput.Model
}

func NewConnectionForm() *ConnectionForm {
	f := &ConnectionForm{}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 512
		ti.Width = 48
		f.inputs[i] = ti
	}
	f.inputs[connFieldSecret].EchoMode = textinput.EchoPassword
	f.inputs[connFieldSecret].EchoCharacter = '•'
	return f
}

// Open shows the form prefilled from preset. panelID is the panel whose
// discovery re-runs after a successful save.
func (f *ConnectionForm) Open(panelID string, preset ProviderCatalog) {
	f.Visible = true
	f.PanelID = panelID
	f.Preset = preset
	f.Saving = false
	f.Err = ""
	f.withDefaults = true
	for i := range f.inputs {
		f.inputs[i].SetValue("")
	}
	f.inputs[connFieldProvider].SetValue(preset.Provider)
	f.inputs[connFieldAdapter].SetValue(preset.Adapter)
	f.inputs[connFieldBaseURL].SetValue(preset.BaseURL)
	f.focus = connFieldSecret
	if preset.Provider == "" {
		f.focus = connFieldProvider
	}
	f.syncFocus()
}

func (f *ConnectionForm) Close() {
	f.Visible = false
	f.Saving = false
	f.Err = ""
	f.PanelID = ""
	for i := range f.inputs {
		f.inputs[i].SetValue("")
		f.inputs[i].Blur()
	}
}

func (f *ConnectionForm) SetWidth(width int) {
	f.MaxWidth = width
	w := modalContentWidth(width)
	if w <= 0 {
		return
	}
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

func (f *ConnectionForm) BeginSaving() {
	f.Saving = true
	f.Err = ""
}

func (f *ConnectionForm) SetError(msg string) {
	f.Saving = false
	f.Err = strings.TrimSpace(msg)
}

func (f *ConnectionForm) Value() providers.NewConnection {
	return providers.NewConnection{
		Provider:          strings.TrimSpace(f.inputs[connFieldProvider].Value()),
		Adapter:           strings.TrimSpace(f.inputs[connFieldAdapter].Value()),
		BaseURL:           strings.TrimSpace(f.inputs[connFieldBaseURL].Value()),
		SecretKey:         strings.TrimSpace(f.inputs[connFieldSecret].Value()),
		CustomModels:      parseModelList(f.inputs[connFieldModels].Value()),
		WithDefaultModels: f.withDefaults,
	}
}

func (f *ConnectionForm) Update(msg tea.Msg) (ConnectionAction, tea.Cmd) {
	if !f.Visible || f.Saving {
		return ConnectionAction{}, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.focus = (f.focus + 1) % connFieldCount
			f.syncFocus()
			return ConnectionAction{}, nil
		case "shift+tab", "up":
			f.focus = (f.focus + connFieldCount - 1) % connFieldCount
			f.syncFocus()
			return ConnectionAction{}, nil
		case "ctrl+t":
			f.withDefaults = !f.withDefaults
			return ConnectionAction{}, nil
		case "enter", "ctrl+s":
			if key.String() == "enter" && f.focus < connFieldModels {
				f.focus++
				f.syncFocus()
				return ConnectionAction{}, nil
			}
			conn := f.Value()
			if err := conn.Validate(); err != nil {
				f.SetError(err.Error())
				return ConnectionAction{}, nil
			}
			return ConnectionAction{Submitted: true, Connection: conn}, nil
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return ConnectionAction{}, cmd
}

func (f *ConnectionForm) syncFocus() {
	for i := range f.inputs {
		if i == f.focus {
			f.inputs[i].Focus()
		} else {
			f.inputs[i].Blur()
		}
	}
}

func (f *ConnectionForm) View() string {
	if !f.Visible {
		return ""
	}
	width := modalContentWidth(f.MaxWidth)
	wrap := func(text string) string {
		if width <= 0 {
			return text
		}
		return wrapToWidth(text, width)
	}

	title := "New LLM connection"
	if f.Preset.Name != "" {
		title += " · " + f.Preset.Name
	}
	parts := []string{connectTitleStyle.Render(wrap(title))}
	if f.Preset.Hint != "" {
		parts = append(parts, connectHintStyle.Render(wrap(f.Preset.Hint)))
	}
	for i, label := range connFieldLabels {
		style := connectHintStyle
		if i == f.focus {
			style = connectSelStyle
		}
		parts = append(parts, "", style.Render(label), f.inputs[i].View())
	}
	defaults := "[ ] include default models"
	if f.withDefaults {
		defaults = "[x] include default models"
	}
	parts = append(parts, "", connectItemStyle.Render(defaults))

	switch {
	case f.Saving:
		parts = append(parts, "", connectHintStyle.Render("Saving connection…"))
	case f.Err != "":
		parts = append(parts, "", connectErrStyle.Render(wrap(f.Err)))
	}
	parts = append(parts, "", connectHintStyle.Render(wrap("tab: next field  ctrl+t: default models  ctrl+s: save  esc: cancel")))

	boxStyle := connectModalBoxStyle
	if f.MaxWidth > 0 {
		boxStyle = boxStyle.MaxWidth(f.MaxWidth)
	}
	return boxStyle.Render(strings.Join(parts, "\n"))
}

func modalContentWidth(maxWidth int) int {
	if maxWidth <= 0 {
		return 0
	}
	return max(20, maxWidth-8)
}
