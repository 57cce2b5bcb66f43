package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/providers"
	"github.com/yubzen/playground/internal/state"
)

var (
	appStyle         = lipgloss.NewStyle().Margin(0, 0)
	promptIndicator  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	editIndicator    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	suggestNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	suggestDescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	suggestSelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
)

const (
	createOptionValue = "__create__"
	storeTimeout      = 5 * time.Second
	inputHistoryLimit = 100
)

// Backend is the network side the UI drives.
type Backend interface {
	playground.Backend
	CreateConnection(ctx context.Context, projectID string, in providers.NewConnection) (providers.Connection, error)
}

// Store persists the tool/schema catalog and the run log. It may be nil.
type Store interface {
	ListDefinitions(ctx context.Context, kind playground.DefinitionKind) ([]playground.Definition, error)
	SaveDefinition(ctx context.Context, d playground.Definition) error
	RecordRun(ctx context.Context, r state.Run) error
}

type Options struct {
	Backend  Backend
	Store    Store
	Resolver project.Resolver
	Panel    playground.PanelOptions
	// Panels is the number of panels opened at start, at least one.
	Panels int
}

// RoutedMsg carries the outcome of off-loop work for one panel.
type RoutedMsg struct {
	PanelID string
	Inner   tea.Msg
}

type discoveryDoneMsg struct {
	result playground.DiscoveryResult
}

type streamChunkMsg struct {
	runID string
	text  string
	ch    <-chan tea.Msg
}

type submitDoneMsg struct {
	runID string
	out   *providers.Output
	err   error
}

type connectionSavedMsg struct {
	conn providers.Connection
	err  error
}

type definitionSavedMsg struct {
	def playground.Definition
	err error
}

type definitionsLoadedMsg struct {
	kind playground.DefinitionKind
	defs []playground.Definition
	err  error
}

type projectChangedMsg struct {
	id project.ID
}

type runRecordedMsg struct {
	runID string
	err   error
}

// AppModel is the playground screen: a row of panels, a composer line and
// a toolbar, with modals for models, connections and attachments.
type AppModel struct {
	backend  Backend
	store    Store
	resolver project.Resolver
	registry *playground.Registry
	pending  []*playground.DiscoveryRequest

	views     map[string]*PanelView
	focus     int
	statusbar *StatusBarModel
	input     textinput.Model
	role      playground.Role
	editing   int

	suggestions      []slashCommand
	selectedSlashIdx int
	lastSuggestInput string

	inputHistory      []string
	inputHistoryIndex int
	inputDraft        string

	modelsModal    *ModelsModal
	providerPicker *SelectModal
	connForm       *ConnectionForm
	defPicker      *SelectModal
	defForm        *DefinitionForm
	pickerKind     playground.DefinitionKind
	pickerPanel    string
	catalog        map[playground.DefinitionKind][]playground.Definition

	ticking bool
	now     func() time.Time
	width   int
	height  int
}

func NewAppModel(opts Options) *AppModel {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = project.NewStatic(project.Missing())
	}
	registry, first := playground.NewRegistry(opts.Panel, resolver.Current())

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 0
	ti.Focus()

	m := &AppModel{
		backend:           opts.Backend,
		store:             opts.Store,
		resolver:          resolver,
		registry:          registry,
		views:             make(map[string]*PanelView),
		statusbar:         NewStatusBarModel(),
		input:             ti,
		role:              playground.RoleUser,
		editing:           -1,
		selectedSlashIdx:  -1,
		inputHistoryIndex: -1,
		modelsModal:       NewModelsModal(),
		providerPicker:    NewSelectModal("Add LLM connection", "up/down: navigate  enter: select  esc: close"),
		connForm:          NewConnectionForm(),
		defPicker:         NewSelectModal("", "up/down: navigate  enter: attach/detach  esc: close"),
		defForm:           NewDefinitionForm(),
		catalog:           make(map[playground.DefinitionKind][]playground.Definition),
		now:               time.Now,
	}
	if first != nil {
		m.pending = append(m.pending, first)
	}
	for i := 1; i < opts.Panels; i++ {
		if _, req := registry.Add(); req != nil {
			m.pending = append(m.pending, req)
		}
	}
	for _, p := range registry.Panels() {
		m.views[p.ID()] = NewPanelView()
	}
	options := make([]SelectOption, 0, len(defaultProviderCatalog()))
	for _, preset := range defaultProviderCatalog() {
		options = append(options, SelectOption{Label: preset.Name, Value: preset.Name, Enabled: true})
	}
	m.providerPicker.SetOptions(options)
	m.syncStatus()
	return m
}

func (m *AppModel) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, req := range m.pending {
		cmds = append(cmds, m.discoverCmd(req))
	}
	m.pending = nil
	if ch := m.resolver.Updates(); ch != nil {
		cmds = append(cmds, waitForProject(ch))
	}
	cmds = append(cmds, m.ensureTicking())
	return tea.Batch(cmds...)
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusbar.SetWidth(msg.Width)
		m.input.Width = max(8, msg.Width-4)
		modalWidth := max(32, msg.Width-4)
		m.providerPicker.SetWidth(modalWidth)
		m.defPicker.SetWidth(modalWidth)
		m.connForm.SetWidth(modalWidth)
		m.modelsModal.SetSize(msg.Width, msg.Height)
		m.defForm.SetSize(msg.Width, msg.Height)
		return m, nil

	case RoutedMsg:
		return m, m.handleRouted(msg)

	case projectChangedMsg:
		var cmds []tea.Cmd
		for _, req := range m.registry.SetProject(msg.id) {
			cmds = append(cmds, m.discoverCmd(req))
		}
		logging.Info().Str("project", msg.id.String()).Msg("project identifier changed")
		m.syncStatus()
		if ch := m.resolver.Updates(); ch != nil {
			cmds = append(cmds, waitForProject(ch))
		}
		cmds = append(cmds, m.ensureTicking())
		return m, tea.Batch(cmds...)

	case definitionsLoadedMsg:
		if msg.err != nil {
			m.notify(fmt.Sprintf("Failed to load %ss: %v", msg.kind, msg.err))
		} else {
			m.catalog[msg.kind] = msg.defs
		}
		m.openDefinitionPicker(msg.kind)
		return m, nil

	case runRecordedMsg:
		if msg.err != nil {
			logging.Warn().Err(msg.err).Str("run", msg.runID).Msg("run history write failed")
		}
		return m, nil

	case LoadingTickMsg:
		m.ticking = false
		return m, m.ensureTicking()

	case CommandResultMsg:
		m.notify(msg.Msg)
		return m, nil
	}

	return m, m.handleAction(msg)
}

// handleAction applies toolbar and slash-command actions.
func (m *AppModel) handleAction(msg tea.Msg) tea.Cmd {
	p := m.focused()
	switch msg := msg.(type) {
	case AddPanelMsg:
		return m.addPanel(m.registry.Add())
	case DuplicatePanelMsg:
		if !m.panelUsable(p) {
			return nil
		}
		return m.addPanel(m.registry.Duplicate(p.ID()))
	case RemovePanelMsg:
		if !m.registry.ShowRemove() {
			m.notify("The last panel cannot be removed.")
			return nil
		}
		if !m.panelUsable(p) {
			return nil
		}
		m.registry.Remove(p.ID())
		delete(m.views, p.ID())
		m.focus = min(m.focus, m.registry.Len()-1)
		m.syncStatus()
		return nil
	case ResetPlaygroundMsg:
		m.views = make(map[string]*PanelView)
		m.focus = 0
		m.editing = -1
		cmd := m.addPanel(m.registry.Reset())
		m.notify("Playground reset.")
		return cmd
	case ToggleStreamingMsg:
		if !m.panelUsable(p) {
			return nil
		}
		p.SetStreaming(!p.Streaming())
		if p.Streaming() {
			m.notify("Streaming on.")
		} else {
			m.notify("Streaming off.")
		}
		return nil
	case RefreshPanelMsg:
		if !m.panelUsable(p) {
			return nil
		}
		req := p.Refresh()
		m.syncModelsModal()
		return tea.Batch(m.discoverCmd(req), m.ensureTicking())
	case ClearTranscriptMsg:
		if !m.panelUsable(p) {
			return nil
		}
		p.Transcript.Set(nil)
		m.editing = -1
		return nil
	case SubmitMsg:
		if msg.All {
			return m.submitAll()
		}
		return m.submit(p)
	case SetRoleMsg:
		m.role = msg.Role
		m.syncStatus()
		return nil
	case OpenModelsModalMsg:
		if !m.panelUsable(p) {
			return nil
		}
		m.modelsModal.Open()
		m.syncModelsModal()
		return nil
	case OpenConnectModalMsg:
		if !m.panelUsable(p) {
			return nil
		}
		m.providerPicker.Open()
		return nil
	case OpenPickerMsg:
		if !m.panelUsable(p) {
			return nil
		}
		m.pickerPanel = p.ID()
		return m.loadDefinitionsCmd(msg.Kind)
	case OpenDefinitionFormMsg:
		if !m.panelUsable(p) {
			return nil
		}
		m.defForm.Open(msg.Kind, p.ID())
		return nil
	}
	return nil
}

// Close cancels every outstanding discovery and run. It is safe to call
// more than once.
func (m *AppModel) Close() {
	m.registry.Close()
}

func (m *AppModel) addPanel(p *playground.Panel, req *playground.DiscoveryRequest) tea.Cmd {
	m.views[p.ID()] = NewPanelView()
	m.focus = m.registry.Index(p.ID())
	m.syncStatus()
	return tea.Batch(m.discoverCmd(req), m.ensureTicking())
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Close()
		return m, tea.Quit
	}

	switch {
	case m.defForm.Visible:
		if msg.String() == "esc" {
			m.defForm.Close()
			return m, nil
		}
		action, cmd := m.defForm.Update(msg)
		if action.Created {
			panelID := m.defForm.PanelID
			m.defForm.Close()
			return m, m.saveDefinitionCmd(panelID, action.Definition)
		}
		return m, cmd

	case m.connForm.Visible:
		if msg.String() == "esc" {
			m.connForm.Close()
			return m, nil
		}
		action, cmd := m.connForm.Update(msg)
		if action.Submitted {
			projectID, ok := m.registry.Project().Value()
			if !ok {
				m.connForm.SetError(playground.PlaceholderMissingProject)
				return m, nil
			}
			m.connForm.BeginSaving()
			return m, m.createConnectionCmd(m.connForm.PanelID, projectID, action.Connection)
		}
		return m, cmd

	case m.providerPicker.Visible:
		return m, m.handleProviderPickerKey(msg)

	case m.defPicker.Visible:
		return m, m.handleDefinitionPickerKey(msg)

	case m.modelsModal.Visible:
		if msg.String() == "esc" {
			m.modelsModal.Close()
			return m, nil
		}
		action, cmd := m.modelsModal.Update(msg)
		if p := m.focused(); p != nil {
			switch {
			case action.Picked:
				p.Pick(action.Item)
				m.modelsModal.Close()
				m.notify(fmt.Sprintf("Model selected: %s (%s)", action.Item.Model, action.Item.Connection.Provider))
			case action.Manual:
				p.Select(action.Selection)
				m.modelsModal.Close()
				m.notify("Model set to " + action.Selection.Model)
			case action.AddConnection:
				m.modelsModal.Close()
				m.providerPicker.Open()
			}
		}
		return m, cmd
	}

	p := m.focused()
	switch msg.String() {
	case "tab":
		if m.applyTopSuggestion() {
			return m, nil
		}
		m.moveFocus(1)
		return m, nil
	case "shift+tab":
		m.moveFocus(-1)
		return m, nil
	case "ctrl+s":
		return m, m.submit(p)
	case "ctrl+r":
		m.role = m.role.Next()
		m.syncStatus()
		return m, nil
	case "ctrl+up":
		m.view(p).MoveCursor(p, -1)
		return m, nil
	case "ctrl+down":
		m.view(p).MoveCursor(p, 1)
		return m, nil
	case "ctrl+o":
		m.cycleSelectedRole(p)
		return m, nil
	case "ctrl+x":
		m.removeSelectedMessage(p)
		return m, nil
	case "ctrl+e":
		m.editSelectedMessage(p)
		return m, nil
	case "pgup":
		m.view(p).ScrollOutput(-5)
		return m, nil
	case "pgdown":
		m.view(p).ScrollOutput(5)
		return m, nil
	case "esc":
		m.editing = -1
		m.input.SetValue("")
		m.updateSuggestions()
		return m, nil
	case "up", "down":
		delta := -1
		if msg.String() == "down" {
			delta = 1
		}
		if len(m.suggestions) > 0 {
			m.moveSuggestion(delta)
		} else {
			m.navigateInputHistory(delta)
		}
		return m, nil
	case "enter":
		return m, m.handleEnter()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.inputHistoryIndex = -1
	m.updateSuggestions()
	return m, cmd
}

func (m *AppModel) handleEnter() tea.Cmd {
	if selected, ok := m.selectedSuggestion(); ok && !strings.Contains(strings.TrimSpace(m.input.Value()), " ") {
		m.appendInputHistory(selected.Name)
		m.clearInput()
		return handleSlashCommand(selected.Name)
	}

	text, isCommand := classifyUserInput(m.input.Value())
	if text == "" {
		return nil
	}
	m.appendInputHistory(text)
	if isCommand {
		m.clearInput()
		return handleSlashCommand(text)
	}

	p := m.focused()
	if !m.panelUsable(p) {
		return nil
	}
	if m.editing >= 0 {
		if err := p.Transcript.SetContent(m.editing, text); err != nil {
			m.notify(err.Error())
		}
		m.editing = -1
	} else {
		msg := playground.Message{Role: m.role, Content: text}
		if m.role == playground.RolePlaceholder {
			msg.Kind = playground.KindPlaceholder
		}
		p.Transcript.Append(msg)
		m.view(p).SetCursor(p.Transcript.Len() - 1)
	}
	m.clearInput()
	return nil
}

func (m *AppModel) handleProviderPickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.providerPicker.Close()
	case "up":
		m.providerPicker.Move(-1)
	case "down":
		m.providerPicker.Move(1)
	case "enter":
		opt, ok := m.providerPicker.SelectedOption()
		m.providerPicker.Close()
		if !ok {
			return nil
		}
		for _, preset := range defaultProviderCatalog() {
			if preset.Name == opt.Value {
				if p := m.focused(); p != nil {
					m.connForm.Open(p.ID(), preset)
				}
				return textinput.Blink
			}
		}
	}
	return nil
}

func (m *AppModel) handleDefinitionPickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.defPicker.Close()
	case "up":
		m.defPicker.Move(-1)
	case "down":
		m.defPicker.Move(1)
	case "enter":
		opt, ok := m.defPicker.SelectedOption()
		if !ok {
			return nil
		}
		p, found := m.registry.Get(m.pickerPanel)
		if !found {
			m.defPicker.Close()
			return nil
		}
		if opt.Value == createOptionValue {
			m.defPicker.Close()
			m.defForm.Open(m.pickerKind, p.ID())
			return textinput.Blink
		}
		def, ok := m.definition(m.pickerKind, opt.Value)
		if !ok {
			return nil
		}
		m.toggleAttachment(p, def)
		if m.pickerKind == playground.KindSchema {
			m.defPicker.Close()
			return nil
		}
		m.openDefinitionPicker(m.pickerKind)
		m.defPicker.SelectValue(def.ID)
	}
	return nil
}

func (m *AppModel) toggleAttachment(p *playground.Panel, def playground.Definition) {
	switch def.Kind {
	case playground.KindTool:
		if p.Attachments.HasTool(def.ID) {
			p.Attachments.RemoveTool(def.ID)
			m.notify("Tool detached: " + def.Name)
			return
		}
		p.Attachments.AddTool(def)
		m.notify("Tool attached: " + def.Name)
	case playground.KindSchema:
		if p.Attachments.ClearSchema(def.ID) {
			m.notify("Schema cleared: " + def.Name)
			return
		}
		p.Attachments.SetSchema(def)
		m.notify("Schema set: " + def.Name)
	}
}

func (m *AppModel) definition(kind playground.DefinitionKind, id string) (playground.Definition, bool) {
	for _, d := range m.catalog[kind] {
		if d.ID == id {
			return d, true
		}
	}
	return playground.Definition{}, false
}

func (m *AppModel) openDefinitionPicker(kind playground.DefinitionKind) {
	p, ok := m.registry.Get(m.pickerPanel)
	if !ok {
		return
	}
	m.pickerKind = kind
	m.defPicker.Title = "Tools"
	if kind == playground.KindSchema {
		m.defPicker.Title = "Structured output schema"
	}
	current, hasSchema := p.Attachments.Schema()
	options := []SelectOption{{Label: fmt.Sprintf("+ Create new %s…", kind), Value: createOptionValue, Enabled: true}}
	for _, d := range m.catalog[kind] {
		label := d.Name
		if d.Description != "" {
			label += " · " + d.Description
		}
		marked := p.Attachments.HasTool(d.ID)
		if kind == playground.KindSchema {
			marked = hasSchema && current.ID == d.ID
		}
		options = append(options, SelectOption{Label: label, Value: d.ID, Marked: marked, Enabled: true})
	}
	m.defPicker.SetOptions(options)
	m.defPicker.Open()
}

// syncModelsModal refreshes an open models menu from the focused panel.
func (m *AppModel) syncModelsModal() {
	p := m.focused()
	if !m.modelsModal.Visible || p == nil {
		return
	}
	if p.Loading() {
		m.modelsModal.SetLoading(playground.ReasonLoading)
		return
	}
	m.modelsModal.ClearLoading()
	m.modelsModal.SetItems(p.MenuItems(), p.Selection())
}

func (m *AppModel) handleRouted(msg RoutedMsg) tea.Cmd {
	switch inner := msg.Inner.(type) {
	case discoveryDoneMsg:
		if !m.registry.ApplyDiscovery(inner.result) {
			return nil
		}
		if p := m.focused(); p != nil && p.ID() == msg.PanelID {
			m.syncModelsModal()
		}
		var authErr *providers.AuthError
		if errors.As(inner.result.Err, &authErr) {
			m.notify(authErr.Error())
		}
		return nil

	case streamChunkMsg:
		// Keep draining so the producer can finish even for stale runs.
		next := waitForRun(inner.ch)
		if p, ok := m.registry.Get(msg.PanelID); ok {
			p.ApplyChunk(inner.runID, inner.text)
		}
		return next

	case submitDoneMsg:
		p, ok := m.registry.Get(msg.PanelID)
		if !ok || !p.FinishSubmit(inner.runID, inner.out, inner.err) {
			return nil
		}
		m.syncStatus()
		return m.recordRunCmd(p)

	case connectionSavedMsg:
		if inner.err != nil {
			m.connForm.SetError(inner.err.Error())
			return nil
		}
		m.connForm.Close()
		m.notify(fmt.Sprintf("Connection saved for %s.", inner.conn.Provider))
		p, ok := m.registry.Get(msg.PanelID)
		if !ok {
			return nil
		}
		return tea.Batch(m.discoverCmd(p.Refresh()), m.ensureTicking())

	case definitionSavedMsg:
		if inner.err != nil {
			m.notify(fmt.Sprintf("Failed to save %s: %v", inner.def.Kind, inner.err))
			return nil
		}
		m.catalog[inner.def.Kind] = append(m.catalog[inner.def.Kind], inner.def)
		if p, ok := m.registry.Get(msg.PanelID); ok {
			m.toggleAttachment(p, inner.def)
		}
		return nil
	}
	return nil
}

func (m *AppModel) submit(p *playground.Panel) tea.Cmd {
	if p == nil {
		return nil
	}
	req, err := p.BeginSubmit()
	if err != nil {
		m.notify(err.Error())
		return nil
	}
	m.view(p).MarkStarted(m.now())
	m.syncStatus()
	return tea.Batch(m.runSubmitCmd(req), m.ensureTicking())
}

func (m *AppModel) submitAll() tea.Cmd {
	reqs := m.registry.SubmitAll()
	if len(reqs) == 0 {
		m.notify("No panel is ready to run.")
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(reqs)+1)
	for _, req := range reqs {
		if p, ok := m.registry.Get(req.PanelID); ok {
			m.view(p).MarkStarted(m.now())
		}
		cmds = append(cmds, m.runSubmitCmd(req))
	}
	m.notify(fmt.Sprintf("Started %d run(s).", len(reqs)))
	m.syncStatus()
	return tea.Batch(append(cmds, m.ensureTicking())...)
}

func (m *AppModel) discoverCmd(req *playground.DiscoveryRequest) tea.Cmd {
	if req == nil || m.backend == nil {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		return RoutedMsg{PanelID: req.PanelID, Inner: discoveryDoneMsg{result: playground.RunDiscovery(backend, req)}}
	}
}

// runSubmitCmd performs the call on its own goroutine and feeds chunks and
// the final result back through a channel.
func (m *AppModel) runSubmitCmd(req *playground.SubmitRequest) tea.Cmd {
	backend := m.backend
	ch := make(chan tea.Msg, 64)
	// Sends give up once the run is cancelled so an undrained channel
	// cannot pin the goroutine after the program exits.
	send := func(inner tea.Msg) {
		select {
		case ch <- RoutedMsg{PanelID: req.PanelID, Inner: inner}:
		case <-req.Ctx.Done():
		}
	}
	go func() {
		defer close(ch)
		if backend == nil {
			send(submitDoneMsg{runID: req.RunID, err: errors.New("no backend configured")})
			return
		}
		out, err := playground.RunSubmit(backend, req, func(text string) {
			send(streamChunkMsg{runID: req.RunID, text: text, ch: ch})
		})
		send(submitDoneMsg{runID: req.RunID, out: out, err: err})
	}()
	return waitForRun(ch)
}

func waitForRun(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func waitForProject(ch <-chan project.ID) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return nil
		}
		return projectChangedMsg{id: id}
	}
}

func (m *AppModel) createConnectionCmd(panelID, projectID string, in providers.NewConnection) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		if backend == nil {
			return RoutedMsg{PanelID: panelID, Inner: connectionSavedMsg{err: errors.New("no backend configured")}}
		}
		conn, err := backend.CreateConnection(context.Background(), projectID, in)
		return RoutedMsg{PanelID: panelID, Inner: connectionSavedMsg{conn: conn, err: err}}
	}
}

func (m *AppModel) loadDefinitionsCmd(kind playground.DefinitionKind) tea.Cmd {
	store := m.store
	cached := append([]playground.Definition(nil), m.catalog[kind]...)
	return func() tea.Msg {
		if store == nil {
			return definitionsLoadedMsg{kind: kind, defs: cached}
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		defs, err := store.ListDefinitions(ctx, kind)
		return definitionsLoadedMsg{kind: kind, defs: defs, err: err}
	}
}

func (m *AppModel) saveDefinitionCmd(panelID string, def playground.Definition) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		var err error
		if store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			err = store.SaveDefinition(ctx, def)
		}
		return RoutedMsg{PanelID: panelID, Inner: definitionSavedMsg{def: def, err: err}}
	}
}

func (m *AppModel) recordRunCmd(p *playground.Panel) tea.Cmd {
	if m.store == nil {
		return nil
	}
	projectID, _ := p.Project().Value()
	sel := p.Selection()
	run := state.Run{
		ID:         p.RunID(),
		PanelID:    p.ID(),
		ProjectID:  projectID,
		Provider:   sel.Provider,
		Adapter:    sel.Adapter,
		Model:      sel.Model,
		Streaming:  p.Streaming(),
		Status:     p.Status().String(),
		Error:      p.SubmitError(),
		StartedAt:  m.view(p).started.UTC(),
		FinishedAt: m.now().UTC(),
	}
	if out, ok := p.Output(); ok {
		run.Output = out.Display()
	}
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		return runRecordedMsg{runID: run.ID, err: store.RecordRun(ctx, run)}
	}
}

// ensureTicking keeps one loading tick in flight while any panel is busy.
func (m *AppModel) ensureTicking() tea.Cmd {
	if m.ticking || !m.busy() {
		return nil
	}
	m.ticking = true
	return loadingTickCmd()
}

func (m *AppModel) busy() bool {
	for _, p := range m.registry.Panels() {
		if p.Loading() || p.Submitting() {
			return true
		}
	}
	return false
}

func (m *AppModel) focused() *playground.Panel {
	panels := m.registry.Panels()
	if len(panels) == 0 {
		return nil
	}
	m.focus = min(max(m.focus, 0), len(panels)-1)
	return panels[m.focus]
}

func (m *AppModel) view(p *playground.Panel) *PanelView {
	v, ok := m.views[p.ID()]
	if !ok {
		v = NewPanelView()
		m.views[p.ID()] = v
	}
	return v
}

func (m *AppModel) moveFocus(delta int) {
	n := m.registry.Len()
	m.focus = ((m.focus+delta)%n + n) % n
	m.editing = -1
}

// panelUsable reports whether panel actions are allowed, telling the user
// why not otherwise.
func (m *AppModel) panelUsable(p *playground.Panel) bool {
	if p == nil {
		return false
	}
	if text := p.Placeholder(); text != "" {
		m.notify(text)
		return false
	}
	return true
}

func (m *AppModel) cycleSelectedRole(p *playground.Panel) {
	if !m.panelUsable(p) {
		return
	}
	i := m.view(p).Cursor(p)
	if i < 0 {
		return
	}
	msgs := p.Transcript.Messages()
	next := msgs[i].Role.Next()
	_ = p.Transcript.SetRole(i, next)
}

func (m *AppModel) removeSelectedMessage(p *playground.Panel) {
	if !m.panelUsable(p) {
		return
	}
	i := m.view(p).Cursor(p)
	if i < 0 {
		return
	}
	_ = p.Transcript.Remove(i)
	m.editing = -1
	m.view(p).MoveCursor(p, 0)
}

func (m *AppModel) editSelectedMessage(p *playground.Panel) {
	if !m.panelUsable(p) {
		return
	}
	i := m.view(p).Cursor(p)
	if i < 0 {
		return
	}
	m.editing = i
	m.input.SetValue(p.Transcript.Messages()[i].Content)
	m.input.CursorEnd()
	m.updateSuggestions()
}

func (m *AppModel) notify(msg string) {
	m.statusbar.SetNotice(msg)
}

func (m *AppModel) syncStatus() {
	m.statusbar.Project = m.registry.Project().String()
	m.statusbar.Windows = m.registry.Len()
	m.statusbar.Role = string(m.role)
	running := 0
	for _, p := range m.registry.Panels() {
		if p.Submitting() {
			running++
		}
	}
	m.statusbar.Running = running
}

func (m *AppModel) clearInput() {
	m.input.SetValue("")
	m.inputHistoryIndex = -1
	m.updateSuggestions()
}

func (m *AppModel) updateSuggestions() {
	input := m.input.Value()
	changed := input != m.lastSuggestInput
	m.lastSuggestInput = input

	m.suggestions = filterSlashCommands(input, 6)
	switch {
	case len(m.suggestions) == 0:
		m.selectedSlashIdx = -1
	case changed || m.selectedSlashIdx < 0:
		m.selectedSlashIdx = 0
	case m.selectedSlashIdx >= len(m.suggestions):
		m.selectedSlashIdx = len(m.suggestions) - 1
	}
}

func (m *AppModel) selectedSuggestion() (slashCommand, bool) {
	if m.selectedSlashIdx < 0 || m.selectedSlashIdx >= len(m.suggestions) {
		return slashCommand{}, false
	}
	return m.suggestions[m.selectedSlashIdx], true
}

func (m *AppModel) moveSuggestion(delta int) {
	if len(m.suggestions) == 0 {
		return
	}
	m.selectedSlashIdx = min(max(m.selectedSlashIdx+delta, 0), len(m.suggestions)-1)
}

func (m *AppModel) applyTopSuggestion() bool {
	s, ok := m.selectedSuggestion()
	if !ok {
		return false
	}
	m.input.SetValue(s.Name)
	m.input.CursorEnd()
	m.updateSuggestions()
	return true
}

func (m *AppModel) appendInputHistory(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	if n := len(m.inputHistory); n > 0 && m.inputHistory[n-1] == entry {
		return
	}
	m.inputHistory = append(m.inputHistory, entry)
	if len(m.inputHistory) > inputHistoryLimit {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-inputHistoryLimit:]
	}
}

func (m *AppModel) navigateInputHistory(delta int) {
	if len(m.inputHistory) == 0 {
		return
	}
	if m.inputHistoryIndex < 0 {
		if delta > 0 {
			return
		}
		m.inputDraft = m.input.Value()
		m.inputHistoryIndex = len(m.inputHistory)
	}
	next := m.inputHistoryIndex + delta
	switch {
	case next < 0:
		next = 0
	case next >= len(m.inputHistory):
		m.inputHistoryIndex = -1
		m.input.SetValue(m.inputDraft)
		m.input.CursorEnd()
		return
	}
	m.inputHistoryIndex = next
	m.input.SetValue(m.inputHistory[next])
	m.input.CursorEnd()
}

func (m *AppModel) View() string {
	if overlay := m.overlay(); overlay != "" {
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
		}
		return overlay
	}

	composer := m.composerView()
	status := m.statusbar.View()
	panelHeight := m.height - lipgloss.Height(composer) - lipgloss.Height(status)
	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.panelsView(panelHeight),
		composer,
		status,
	))
}

func (m *AppModel) overlay() string {
	switch {
	case m.defForm.Visible:
		return m.defForm.View()
	case m.connForm.Visible:
		return m.connForm.View()
	case m.providerPicker.Visible:
		return m.providerPicker.View()
	case m.defPicker.Visible:
		return m.defPicker.View()
	case m.modelsModal.Visible:
		return m.modelsModal.View()
	}
	return ""
}

func (m *AppModel) panelsView(height int) string {
	panels := m.registry.Panels()
	first, visible, width := panelColumns(m.width, len(panels), m.focus)
	now := m.now()
	showRemove := m.registry.ShowRemove()

	cols := make([]string, 0, visible)
	for i := first; i < first+visible; i++ {
		p := panels[i]
		v := m.view(p)
		v.SetSize(width, max(10, height))
		cols = append(cols, v.View(p, i+1, i == m.focus, showRemove, now))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m *AppModel) composerView() string {
	var lines []string
	for i, c := range m.suggestions {
		if i == m.selectedSlashIdx {
			lines = append(lines, suggestSelStyle.Render("> "+c.Name)+"  "+suggestDescStyle.Render(c.Description))
		} else {
			lines = append(lines, "  "+suggestNameStyle.Render(c.Name)+"  "+suggestDescStyle.Render(c.Description))
		}
	}

	prompt := promptIndicator.Render(strings.ToUpper(string(m.role)) + " > ")
	if m.editing >= 0 {
		prompt = editIndicator.Render(fmt.Sprintf("EDIT #%d > ", m.editing+1))
	}
	lines = append(lines, prompt+m.input.View())
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}
