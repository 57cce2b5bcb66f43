package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/playground/internal/playground"
)

var modelModalBG = lipgloss.Color("235")

var (
	modelModalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")).
				Background(modelModalBG).
				Padding(1, 2)
	modelModalTitleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Background(modelModalBG).Bold(true)
	modelModalHintStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Background(modelModalBG)
	modelModalItemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(modelModalBG)
	modelModalTabActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("45")).Bold(true).Padding(0, 1)
	modelModalTabInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("238")).Padding(0, 1)
	modelModalSearchLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("81")).Background(modelModalBG).Bold(true)
	modelModalSearchValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(modelModalBG)
	modelModalSearchHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Background(modelModalBG)
	modelModalSearchCursor     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Background(modelModalBG)
)

const addConnectionLabel = "Add new connection…"

// ModelOption is one saved (connection, model) pair of the menu, or the
// trailing "add connection" entry.
type ModelOption struct {
	Item          playground.MenuItem
	AddConnection bool
}

func (m ModelOption) FilterValue() string {
	return strings.TrimSpace(m.providerLabel() + " " + m.Item.Model)
}

func (m ModelOption) Title() string {
	if m.AddConnection {
		return "+ " + addConnectionLabel
	}
	if m.Item.Active {
		return "● " + m.Item.Model
	}
	return m.Item.Model
}

func (m ModelOption) Description() string {
	if m.AddConnection {
		return "Create an LLM connection for this project"
	}
	return m.providerLabel()
}

func (m ModelOption) providerLabel() string {
	c := m.Item.Connection
	if c.Adapter != "" {
		return fmt.Sprintf("%s (%s)", c.Provider, c.Adapter)
	}
	return c.Provider
}

type modelFilterTab int

const (
	modelFilterAll modelFilterTab = iota
	modelFilterCurrent
)

// ModelAction is what the user chose in the models modal.
type ModelAction struct {
	Picked        bool
	Item          playground.MenuItem
	Manual        bool
	Selection     playground.Selection
	AddConnection bool
}

// ModelsModal is the saved-models menu of the focused panel. Besides
// picking a saved pair it accepts a manually typed model for the current
// provider.
type ModelsModal struct {
	Visible bool

	models         []ModelOption
	filtered       []ModelOption
	list           list.Model
	current        playground.Selection
	loading        bool
	loadingMessage string
	query          string
	activeTab      modelFilterTab
}

func NewModelsModal() *ModelsModal {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("252")).Background(modelModalBG)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(lipgloss.Color("244")).Background(modelModalBG)
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("213")).Background(modelModalBG).Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("183")).Background(modelModalBG).Bold(true)
	delegate.Styles.DimmedTitle = delegate.Styles.DimmedTitle.Background(modelModalBG)
	delegate.Styles.DimmedDesc = delegate.Styles.DimmedDesc.Background(modelModalBG)

	l := list.New(nil, delegate, 72, 14)
	l.Styles.NoItems = l.Styles.NoItems.Background(modelModalBG)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return &ModelsModal{list: l, activeTab: modelFilterAll}
}

// SetItems replaces the menu with the panel's current entries.
func (m *ModelsModal) SetItems(items []playground.MenuItem, current playground.Selection) {
	m.current = current
	m.models = make([]ModelOption, 0, len(items))
	activeKey := ""
	for _, item := range items {
		m.models = append(m.models, ModelOption{Item: item})
		if item.Active {
			activeKey = item.ID
		}
	}
	m.query = ""
	m.applyFilters(activeKey)
}

func (m *ModelsModal) SetSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.list.SetWidth(max(44, width-10))
	m.list.SetHeight(max(6, height-14))
}

func (m *ModelsModal) Open()  { m.Visible = true }
func (m *ModelsModal) Close() { m.Visible = false }

func (m *ModelsModal) SetLoading(msg string) {
	m.loading = true
	m.loadingMessage = strings.TrimSpace(msg)
}

func (m *ModelsModal) ClearLoading() {
	m.loading = false
	m.loadingMessage = ""
}

func (m *ModelsModal) Update(msg tea.Msg) (ModelAction, tea.Cmd) {
	if m.loading {
		return ModelAction{}, nil
	}
	if typed, ok := msg.(tea.KeyMsg); ok {
		switch typed.String() {
		case "enter":
			opt, ok := m.SelectedModel()
			if !ok {
				return ModelAction{}, nil
			}
			if opt.AddConnection {
				return ModelAction{AddConnection: true}, nil
			}
			return ModelAction{Picked: true, Item: opt.Item}, nil
		case "ctrl+e":
			// Manual entry keeps the current provider and adapter.
			model := strings.TrimSpace(m.query)
			if model == "" {
				return ModelAction{}, nil
			}
			sel := m.current
			sel.Model = model
			return ModelAction{Manual: true, Selection: sel}, nil
		case "tab", "shift+tab", "left", "right":
			m.toggleTab()
			return ModelAction{}, nil
		case "backspace", "ctrl+h":
			if m.query != "" {
				m.query = trimLastRune(m.query)
				m.applyFilters(m.selectedModelKey())
			}
			return ModelAction{}, nil
		case "ctrl+u":
			m.query = ""
			m.applyFilters(m.selectedModelKey())
			return ModelAction{}, nil
		}
		if typed.Type == tea.KeyRunes && len(typed.Runes) > 0 && !typed.Alt {
			m.query += string(typed.Runes)
			m.applyFilters(m.selectedModelKey())
			return ModelAction{}, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return ModelAction{}, cmd
}

func (m *ModelsModal) SelectedModel() (ModelOption, bool) {
	item := m.list.SelectedItem()
	if item == nil {
		return ModelOption{}, false
	}
	opt, ok := item.(ModelOption)
	return opt, ok
}

func (m *ModelsModal) View() string {
	if !m.Visible {
		return ""
	}
	title := modelModalTitleStyle.Render("Select Model")
	if m.loading {
		body := modelModalItemStyle.Render("Loading…\n\n" + m.loadingMessage)
		return modelModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s\n\n%s", title, body, modelModalHintStyle.Render("Please wait")))
	}

	body := m.list.View()
	if len(m.models) == 0 {
		body = modelModalItemStyle.Render("No saved models yet. Add a connection or type a model.") + "\n\n" + body
	}

	searchText := modelModalSearchHintStyle.Render("type to search, ctrl+e uses the text as model")
	if q := strings.TrimSpace(m.query); q != "" {
		searchText = modelModalSearchValueStyle.Render(q)
	}
	hint := modelModalHintStyle.Render("type: search  tab: ALL/CURRENT  enter: select  ctrl+e: manual model  esc: close")

	return modelModalBoxStyle.Render(fmt.Sprintf("%s\n\n%s\n%s %s%s\n\n%s\n\n%s",
		title,
		m.renderTabs(),
		modelModalSearchLabelStyle.Render("Model:"),
		searchText,
		modelModalSearchCursor.Render("█"),
		body,
		hint,
	))
}

func (m *ModelsModal) toggleTab() {
	key := m.selectedModelKey()
	if m.activeTab == modelFilterAll {
		m.activeTab = modelFilterCurrent
	} else {
		m.activeTab = modelFilterAll
	}
	m.applyFilters(key)
}

func (m *ModelsModal) inCurrent(opt ModelOption) bool {
	return opt.Item.Connection.Matches(m.current.Provider, m.current.Adapter)
}

func (m *ModelsModal) applyFilters(preferredKey string) {
	query := strings.ToLower(strings.TrimSpace(m.query))
	filtered := make([]ModelOption, 0, len(m.models)+1)
	for _, opt := range m.models {
		if m.activeTab == modelFilterCurrent && !m.inCurrent(opt) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(opt.FilterValue()), query) {
			continue
		}
		filtered = append(filtered, opt)
	}
	filtered = append(filtered, ModelOption{AddConnection: true})

	m.filtered = filtered
	items := make([]list.Item, 0, len(filtered))
	for _, opt := range filtered {
		items = append(items, opt)
	}
	m.list.SetItems(items)

	for idx, opt := range filtered {
		if preferredKey != "" && opt.Item.ID == preferredKey {
			m.list.Select(idx)
			return
		}
	}
	m.list.Select(0)
}

func (m *ModelsModal) selectedModelKey() string {
	opt, ok := m.SelectedModel()
	if !ok || opt.AddConnection {
		return ""
	}
	return opt.Item.ID
}

func (m *ModelsModal) renderTabs() string {
	current := 0
	for _, opt := range m.models {
		if m.inCurrent(opt) {
			current++
		}
	}
	allLabel := fmt.Sprintf("ALL (%d)", len(m.models))
	curLabel := fmt.Sprintf("CURRENT (%d)", current)
	if m.activeTab == modelFilterAll {
		return lipgloss.JoinHorizontal(lipgloss.Left,
			modelModalTabActiveStyle.Render(allLabel), " ", modelModalTabInactiveStyle.Render(curLabel))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		modelModalTabInactiveStyle.Render(allLabel), " ", modelModalTabActiveStyle.Render(curLabel))
}

func trimLastRune(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}
	return string(runes[:len(runes)-1])
}
