package tui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/goleak"

	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/providers"
	"github.com/yubzen/playground/internal/state"
)

type fakeBackend struct {
	mu        sync.Mutex
	discovers int
	projects  []string
	created   []providers.NewConnection
	chunks    []string
}

func (b *fakeBackend) Discover(_ context.Context, projectID string) ([]providers.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discovers++
	b.projects = append(b.projects, projectID)
	return []providers.Connection{{ID: "c1", Provider: "openai", Adapter: "openai", CustomModels: []string{"gpt-4o"}}}, nil
}

func (b *fakeBackend) Complete(_ context.Context, req providers.ChatRequest) (providers.Output, error) {
	return providers.TextOutput("ok:" + req.ModelParams.Model), nil
}

func (b *fakeBackend) Stream(ctx context.Context, _ providers.ChatRequest, onText func(string) error) error {
	for _, c := range b.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onText(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBackend) CreateConnection(_ context.Context, projectID string, in providers.NewConnection) (providers.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, in)
	return providers.Connection{ID: "c2", ProjectID: projectID, Provider: in.Provider, Adapter: in.Adapter}, nil
}

func (b *fakeBackend) discoverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discovers
}

type fakeStore struct {
	mu   sync.Mutex
	defs []playground.Definition
	runs []state.Run
}

func (s *fakeStore) ListDefinitions(_ context.Context, kind playground.DefinitionKind) ([]playground.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []playground.Definition
	for _, d := range s.defs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) SaveDefinition(_ context.Context, d playground.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = append(s.defs, d)
	return nil
}

func (s *fakeStore) RecordRun(_ context.Context, r state.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func newTestApp(t *testing.T, id project.ID, panels int) (*AppModel, *fakeBackend, *fakeStore) {
	t.Helper()
	backend := &fakeBackend{chunks: []string{"hello", " ", "world"}}
	store := &fakeStore{defs: []playground.Definition{{
		ID:         "tool-lookup",
		Kind:       playground.KindTool,
		Name:       "lookup",
		Parameters: json.RawMessage(`{"type":"object"}`),
	}}}
	app := NewAppModel(Options{
		Backend:  backend,
		Store:    store,
		Resolver: project.NewStatic(id),
		Panel:    playground.PanelOptions{Temperature: 0.7},
		Panels:   panels,
	})
	app.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	drain(app, app.Init())
	return app, backend, store
}

// drain runs cmd and everything it produces synchronously. Loading ticks
// are swallowed so the loop terminates.
func drain(app *AppModel, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, LoadingTickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, next := app.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(app *AppModel, key tea.KeyType) {
	_, cmd := app.Update(tea.KeyMsg{Type: key})
	drain(app, cmd)
}

func compose(t *testing.T, app *AppModel, text string) {
	t.Helper()
	typeString(t, func(msg tea.Msg) { app.Update(msg) }, text)
	press(app, tea.KeyEnter)
}

func TestAppStartsPanelsAndDiscovers(t *testing.T) {
	t.Parallel()

	app, backend, _ := newTestApp(t, project.Resolved("proj"), 2)

	if app.registry.Len() != 2 || app.statusbar.Windows != 2 {
		t.Fatalf("expected two panels, got %d", app.registry.Len())
	}
	if backend.discoverCount() != 2 {
		t.Fatalf("expected one discovery per panel, got %d", backend.discoverCount())
	}
	for _, p := range app.registry.Panels() {
		if p.Loading() || p.Selection().Model != "gpt-4o" {
			t.Fatalf("panel not ready: loading=%v selection=%+v", p.Loading(), p.Selection())
		}
	}
	if app.statusbar.Project != "proj" {
		t.Fatalf("unexpected project label %q", app.statusbar.Project)
	}
}

func TestAppComposeAndRunBuffered(t *testing.T) {
	t.Parallel()

	app, _, store := newTestApp(t, project.Resolved("proj"), 1)
	compose(t, app, "hi")

	p := app.focused()
	if p.Transcript.Len() != 1 || p.Transcript.Messages()[0].Role != playground.RoleUser {
		t.Fatalf("unexpected transcript %+v", p.Transcript.Messages())
	}

	press(app, tea.KeyCtrlS)

	out, ok := p.Output()
	if !ok || out.Content != "ok:gpt-4o" || p.Status() != playground.StatusSucceeded {
		t.Fatalf("unexpected result %+v status=%s", out, p.Status())
	}
	if len(store.runs) != 1 || store.runs[0].Status != "succeeded" || store.runs[0].ProjectID != "proj" {
		t.Fatalf("expected one recorded run, got %+v", store.runs)
	}
	if app.statusbar.Running != 0 {
		t.Fatalf("running count not cleared: %d", app.statusbar.Running)
	}
}

func TestAppStreamsChunksIntoOutput(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	drain(app, func() tea.Msg { return ToggleStreamingMsg{} })
	compose(t, app, "hi")
	press(app, tea.KeyCtrlS)

	p := app.focused()
	out, ok := p.Output()
	if !ok || out.Content != "hello world" {
		t.Fatalf("expected streamed text, got %+v", out)
	}
	if p.Status() != playground.StatusSucceeded {
		t.Fatalf("unexpected status %s", p.Status())
	}
}

// Not parallel: goleak compares against the goroutines alive at the start.
func TestAppCloseReleasesUndrainedStream(t *testing.T) {
	app, backend, _ := newTestApp(t, project.Resolved("proj"), 1)
	backend.chunks = make([]string, 500)
	for i := range backend.chunks {
		backend.chunks[i] = "x"
	}
	drain(app, func() tea.Msg { return ToggleStreamingMsg{} })
	compose(t, app, "hi")

	ignore := goleak.IgnoreCurrent()
	if cmd := app.submit(app.focused()); cmd == nil {
		t.Fatal("expected submission to start")
	}
	app.Close()

	goleak.VerifyNone(t, ignore)
}

func TestAppDropsResultsForRemovedPanel(t *testing.T) {
	t.Parallel()

	app, _, store := newTestApp(t, project.Resolved("proj"), 2)
	app.focus = 1
	compose(t, app, "hi")
	removed := app.focused()

	cmd := app.submit(removed)
	if cmd == nil || !removed.Submitting() {
		t.Fatal("expected submission to start")
	}
	drain(app, func() tea.Msg { return RemovePanelMsg{} })
	drain(app, cmd)

	if app.registry.Len() != 1 || !removed.Disposed() {
		t.Fatal("panel should be removed and disposed")
	}
	if _, ok := removed.Output(); ok {
		t.Fatal("disposed panel must not receive output")
	}
	if len(store.runs) != 0 {
		t.Fatalf("no run should be recorded, got %+v", store.runs)
	}
	if app.focus != 0 {
		t.Fatalf("focus should clamp to remaining panel, got %d", app.focus)
	}
}

func TestAppRunAllSkipsPanelsThatAreNotReady(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 2)
	compose(t, app, "hi")

	drain(app, func() tea.Msg { return SubmitMsg{All: true} })

	panels := app.registry.Panels()
	if panels[0].Status() != playground.StatusSucceeded {
		t.Fatalf("first panel should run, got %s", panels[0].Status())
	}
	if panels[1].Status() != playground.StatusIdle {
		t.Fatalf("empty panel should stay idle, got %s", panels[1].Status())
	}
}

func TestAppMissingProjectBlocksPanelActions(t *testing.T) {
	t.Parallel()

	app, backend, _ := newTestApp(t, project.Missing(), 1)
	if backend.discoverCount() != 0 {
		t.Fatal("missing project must not fetch connections")
	}

	drain(app, func() tea.Msg { return ToggleStreamingMsg{} })
	if app.focused().Streaming() {
		t.Fatal("streaming must not toggle while the project is missing")
	}
	if app.statusbar.Notice != playground.PlaceholderMissingProject {
		t.Fatalf("unexpected notice %q", app.statusbar.Notice)
	}
	if !strings.Contains(app.View(), playground.PlaceholderMissingProject) {
		t.Fatal("panel should render the missing-project placeholder")
	}

	drain(app, func() tea.Msg { return AddPanelMsg{} })
	if app.registry.Len() != 2 {
		t.Fatal("adding panels stays available")
	}
}

func TestAppProjectChangeRediscovers(t *testing.T) {
	t.Parallel()

	app, backend, _ := newTestApp(t, project.Unresolved(), 1)
	if backend.discoverCount() != 0 {
		t.Fatal("unresolved project must not fetch connections")
	}

	drain(app, func() tea.Msg { return projectChangedMsg{id: project.Resolved("next")} })

	if backend.discoverCount() != 1 || backend.projects[0] != "next" {
		t.Fatalf("expected discovery for new project, got %v", backend.projects)
	}
	if app.statusbar.Project != "next" {
		t.Fatalf("status bar not updated: %q", app.statusbar.Project)
	}
}

func TestAppToolPickerTogglesAttachment(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	drain(app, func() tea.Msg { return OpenPickerMsg{Kind: playground.KindTool} })
	if !app.defPicker.Visible || len(app.defPicker.Options) != 2 {
		t.Fatalf("expected picker with create entry and one tool, got %+v", app.defPicker.Options)
	}

	p := app.focused()
	press(app, tea.KeyDown)
	press(app, tea.KeyEnter)
	if !p.Attachments.HasTool("tool-lookup") || !app.defPicker.Visible {
		t.Fatal("tool should attach and picker stay open")
	}
	if opt, _ := app.defPicker.SelectedOption(); !opt.Marked {
		t.Fatal("attached tool should be marked")
	}

	press(app, tea.KeyEnter)
	if p.Attachments.HasTool("tool-lookup") {
		t.Fatal("second selection should detach the tool")
	}

	press(app, tea.KeyEsc)
	if app.defPicker.Visible {
		t.Fatal("esc should close the picker")
	}
}

func TestAppCreatedDefinitionIsSavedAndAttached(t *testing.T) {
	t.Parallel()

	app, _, store := newTestApp(t, project.Resolved("proj"), 1)
	def, err := playground.NewDefinition(playground.KindSchema, "reply", "", `{"type":"object"}`)
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}

	p := app.focused()
	drain(app, app.saveDefinitionCmd(p.ID(), def))

	if schema, ok := p.Attachments.Schema(); !ok || schema.ID != def.ID {
		t.Fatal("created schema should be attached to its panel")
	}
	if len(store.defs) != 2 {
		t.Fatalf("definition not persisted: %+v", store.defs)
	}
}

func TestAppConnectionSavedRefreshesOriginPanel(t *testing.T) {
	t.Parallel()

	app, backend, _ := newTestApp(t, project.Resolved("proj"), 2)
	before := backend.discoverCount()
	origin := app.registry.Panels()[1]

	app.connForm.Open(origin.ID(), defaultProviderCatalog()[0])
	_, cmd := app.Update(RoutedMsg{PanelID: origin.ID(), Inner: connectionSavedMsg{conn: providers.Connection{Provider: "openai"}}})
	if !origin.Loading() || app.connForm.Visible {
		t.Fatal("origin panel should reload and the form close")
	}
	drain(app, cmd)

	if backend.discoverCount() != before+1 {
		t.Fatalf("expected exactly one refresh, got %d", backend.discoverCount()-before)
	}
	if app.registry.Panels()[0].Loading() {
		t.Fatal("other panels must not refresh")
	}
}

func TestAppSlashCommandFromComposer(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	compose(t, app, "/add")

	if app.registry.Len() != 2 || app.focus != 1 {
		t.Fatalf("expected new focused panel, got len=%d focus=%d", app.registry.Len(), app.focus)
	}
	if app.focused().Transcript.Len() != 0 || app.registry.Panels()[0].Transcript.Len() != 0 {
		t.Fatal("slash commands must not be appended as messages")
	}

	compose(t, app, "/reset")
	if app.registry.Len() != 1 {
		t.Fatalf("reset should leave one panel, got %d", app.registry.Len())
	}
}

func TestAppEditsSelectedMessage(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	compose(t, app, "first")
	compose(t, app, "second")

	press(app, tea.KeyCtrlUp)
	press(app, tea.KeyCtrlE)
	if app.editing != 0 || app.input.Value() != "first" {
		t.Fatalf("expected to edit first message, editing=%d value=%q", app.editing, app.input.Value())
	}
	app.input.SetValue("changed")
	press(app, tea.KeyEnter)

	msgs := app.focused().Transcript.Messages()
	if len(msgs) != 2 || msgs[0].Content != "changed" {
		t.Fatalf("unexpected transcript %+v", msgs)
	}

	press(app, tea.KeyCtrlX)
	if app.focused().Transcript.Len() != 1 {
		t.Fatal("ctrl+x should remove the selected message")
	}
}

func TestAppInputHistory(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	compose(t, app, "one")
	compose(t, app, "two")

	press(app, tea.KeyUp)
	if app.input.Value() != "two" {
		t.Fatalf("expected latest entry, got %q", app.input.Value())
	}
	press(app, tea.KeyUp)
	if app.input.Value() != "one" {
		t.Fatalf("expected previous entry, got %q", app.input.Value())
	}
	press(app, tea.KeyDown)
	press(app, tea.KeyDown)
	if app.input.Value() != "" {
		t.Fatalf("expected draft restored, got %q", app.input.Value())
	}
}

func TestAppModelsModalFollowsDiscovery(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, project.Resolved("proj"), 1)
	drain(app, func() tea.Msg { return OpenModelsModalMsg{} })
	if !app.modelsModal.Visible || app.modelsModal.loading {
		t.Fatal("models menu should open with entries")
	}

	_, cmd := app.Update(RefreshPanelMsg{})
	if !app.modelsModal.loading {
		t.Fatal("menu should show loading while connections reload")
	}
	drain(app, cmd)
	if app.modelsModal.loading {
		t.Fatal("menu should leave loading once discovery lands")
	}

	press(app, tea.KeyEnter)
	if app.modelsModal.Visible || app.focused().Selection().Model != "gpt-4o" {
		t.Fatalf("enter should pick the active model, got %+v", app.focused().Selection())
	}
}
