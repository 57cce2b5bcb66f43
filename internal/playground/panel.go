// Package playground holds the event-loop state of the session orchestrator:
// panels, their discovery and submission lifecycles, and the registry that
// owns them. Nothing here blocks; network work is described by request
// values and its outcome is fed back through Apply/Finish methods.
package playground

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/providers"
)

const (
	PlaceholderLoadingProject = "Loading project…"
	PlaceholderMissingProject = "Project ID not found"

	// SubmitFailedMessage is shown when a failure carries no message.
	SubmitFailedMessage = "An error occurred while running. Please try again."
)

var ErrSubmitInFlight = errors.New("a submission is already running")

// NotReadyError rejects a submission whose preconditions do not hold.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string { return e.Reason }

type SubmissionStatus int

const (
	StatusIdle SubmissionStatus = iota
	StatusSubmitting
	StatusSucceeded
	StatusFailed
)

func (s SubmissionStatus) String() string {
	switch s {
	case StatusSubmitting:
		return "submitting"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// DiscoveryRequest describes a connection fetch the caller must perform
// off the event loop. Ctx is cancelled when the request is superseded or
// the panel is disposed.
type DiscoveryRequest struct {
	PanelID    string
	Generation uint64
	ProjectID  string
	Ctx        context.Context
}

type DiscoveryResult struct {
	PanelID     string
	Generation  uint64
	Connections []providers.Connection
	Err         error
}

// SubmitRequest describes a chat call the caller must perform off the
// event loop.
type SubmitRequest struct {
	PanelID   string
	RunID     string
	Streaming bool
	Body      providers.ChatRequest
	Ctx       context.Context
}

type PanelOptions struct {
	Temperature float64
	Streaming   bool
}

// Panel is one independent experiment.
type Panel struct {
	id   string
	opts PanelOptions

	project      project.ID
	connections  []providers.Connection
	selection    Selection
	loading      bool
	discoveryErr error
	generation   uint64
	stopDiscover context.CancelCauseFunc

	Attachments Attachments
	Transcript  Transcript
	streaming   bool

	status     SubmissionStatus
	output     providers.Output
	hasOutput  bool
	submitErr  string
	runID      string
	stopSubmit context.CancelCauseFunc
	disposed   bool
}

// NewPanel creates an empty panel awaiting its project identifier.
func NewPanel(id string, opts PanelOptions) *Panel {
	return &Panel{
		id:        id,
		opts:      opts,
		project:   project.Unresolved(),
		streaming: opts.Streaming,
	}
}

func (p *Panel) ID() string { return p.id }

func (p *Panel) Project() project.ID { return p.project }

func (p *Panel) Connections() []providers.Connection {
	return append([]providers.Connection(nil), p.connections...)
}

func (p *Panel) Selection() Selection { return p.selection }

func (p *Panel) Loading() bool { return p.loading }

func (p *Panel) DiscoveryErr() error { return p.discoveryErr }

func (p *Panel) Streaming() bool { return p.streaming }

func (p *Panel) SetStreaming(on bool) { p.streaming = on }

func (p *Panel) Disposed() bool { return p.disposed }

// Placeholder is the text shown instead of the panel body while the
// project is unresolved or missing, or "" when the panel is usable.
func (p *Panel) Placeholder() string {
	switch p.project.State() {
	case project.StateUnresolved:
		return PlaceholderLoadingProject
	case project.StateMissing:
		return PlaceholderMissingProject
	default:
		return ""
	}
}

// SetProject reacts to a project identifier transition. It returns the
// discovery to run, or nil when none is needed.
func (p *Panel) SetProject(id project.ID) *DiscoveryRequest {
	if p.disposed || id == p.project {
		return nil
	}
	p.project = id
	p.cancelDiscovery(ErrSuperseded)

	switch id.State() {
	case project.StateMissing:
		p.connections = nil
		p.selection = Selection{}
		p.discoveryErr = nil
		logging.Debug().Str("panel", p.id).Msg("project missing, connections cleared")
		return nil
	case project.StateResolved:
		return p.startDiscovery()
	default:
		return nil
	}
}

// Refresh re-runs discovery for the current project, e.g. after a
// connection was saved.
func (p *Panel) Refresh() *DiscoveryRequest {
	if p.disposed || !p.project.IsResolved() {
		return nil
	}
	p.cancelDiscovery(ErrSuperseded)
	return p.startDiscovery()
}

func (p *Panel) startDiscovery() *DiscoveryRequest {
	projectID, _ := p.project.Value()
	ctx, cancel := newWork(context.Background())
	p.generation++
	p.stopDiscover = cancel
	p.loading = true
	p.discoveryErr = nil

	logging.Debug().Str("panel", p.id).Str("project", projectID).Uint64("generation", p.generation).Msg("discovery started")
	return &DiscoveryRequest{
		PanelID:    p.id,
		Generation: p.generation,
		ProjectID:  projectID,
		Ctx:        ctx,
	}
}

func (p *Panel) cancelDiscovery(cause error) {
	if p.stopDiscover != nil {
		p.stopDiscover(cause)
		p.stopDiscover = nil
	}
	p.loading = false
}

// ApplyDiscovery applies a finished fetch. Results of superseded or
// cancelled requests are dropped and false is returned.
func (p *Panel) ApplyDiscovery(res DiscoveryResult) bool {
	if p.disposed || res.Generation != p.generation || p.stopDiscover == nil || IsCancelled(res.Err) {
		logging.Debug().Str("panel", p.id).Uint64("generation", res.Generation).Msg("stale discovery result dropped")
		return false
	}
	p.stopDiscover(nil)
	p.stopDiscover = nil
	p.loading = false

	if res.Err != nil {
		p.discoveryErr = res.Err
		p.connections = nil
		p.selection = Selection{}
		logging.Warn().Err(res.Err).Str("panel", p.id).Msg("discovery failed")
		return true
	}
	p.connections = append([]providers.Connection(nil), res.Connections...)
	p.selection = initialSelection(p.connections)
	p.discoveryErr = nil
	logging.Info().Str("panel", p.id).Int("connections", len(p.connections)).Msg("discovery applied")
	return true
}

// Select sets exactly the given provider, adapter and model. Manual entry
// goes through here too.
func (p *Panel) Select(sel Selection) {
	p.selection = Selection{
		Provider: strings.TrimSpace(sel.Provider),
		Adapter:  strings.TrimSpace(sel.Adapter),
		Model:    strings.TrimSpace(sel.Model),
	}
}

func (p *Panel) Pick(item MenuItem) {
	p.selection = SelectionFor(item.Connection, item.Model)
}

func (p *Panel) CurrentConnection() (providers.Connection, bool) {
	return CurrentConnection(p.connections, p.selection)
}

func (p *Panel) AvailableModels() []string {
	return AvailableModels(p.connections, p.selection)
}

func (p *Panel) MenuItems() []MenuItem {
	return MenuItems(p.connections, p.selection)
}

func (p *Panel) CanSubmit() bool {
	return p.selection.Provider != "" && p.selection.Model != "" && p.Transcript.HasContent()
}

func (p *Panel) DisabledReason() string {
	return DisabledReason(p.loading, p.selection, p.Transcript.HasContent())
}

// BuildRequest assembles the chat request body from the panel state.
func (p *Panel) BuildRequest() providers.ChatRequest {
	projectID, _ := p.project.Value()
	return providers.ChatRequest{
		ProjectID: projectID,
		Messages:  p.Transcript.Wire(),
		ModelParams: providers.ModelParams{
			Provider:    p.selection.Provider,
			Adapter:     p.selection.Adapter,
			Model:       p.selection.Model,
			Temperature: p.opts.Temperature,
		},
		Streaming: p.streaming,
	}
}

func (p *Panel) Status() SubmissionStatus { return p.status }

func (p *Panel) Submitting() bool { return p.status == StatusSubmitting }

// Output returns the current output and whether there is one.
func (p *Panel) Output() (providers.Output, bool) { return p.output, p.hasOutput }

func (p *Panel) SubmitError() string { return p.submitErr }

func (p *Panel) RunID() string { return p.runID }

// BeginSubmit moves the panel into Submitting and returns the call to
// perform. Re-entrant submits and unmet preconditions are rejected.
func (p *Panel) BeginSubmit() (*SubmitRequest, error) {
	if p.status == StatusSubmitting {
		return nil, ErrSubmitInFlight
	}
	if reason := p.Placeholder(); reason != "" {
		return nil, &NotReadyError{Reason: reason}
	}
	// A selection kept across rediscovery may belong to the previous project.
	if reason := p.DisabledReason(); reason != "" {
		return nil, &NotReadyError{Reason: reason}
	}

	ctx, cancel := newWork(context.Background())
	p.status = StatusSubmitting
	p.output = providers.Output{}
	p.hasOutput = false
	p.submitErr = ""
	p.runID = ulid.Make().String()
	p.stopSubmit = cancel

	logging.Info().Str("panel", p.id).Str("run", p.runID).Bool("streaming", p.streaming).Str("model", p.selection.Model).Msg("submission started")
	return &SubmitRequest{
		PanelID:   p.id,
		RunID:     p.runID,
		Streaming: p.streaming,
		Body:      p.BuildRequest(),
		Ctx:       ctx,
	}, nil
}

// ApplyChunk appends streamed text. The first (possibly empty) chunk
// resets the output to empty content.
func (p *Panel) ApplyChunk(runID, text string) bool {
	if p.status != StatusSubmitting || runID != p.runID {
		return false
	}
	if !p.hasOutput || p.output.IsJSON() {
		p.output = providers.TextOutput("")
		p.hasOutput = true
	}
	p.output.Content += text
	return true
}

// FinishSubmit ends the run. out is the buffered result, nil for streams.
// The panel always leaves Submitting, whichever way the run ended.
func (p *Panel) FinishSubmit(runID string, out *providers.Output, err error) bool {
	if p.status != StatusSubmitting || runID != p.runID {
		return false
	}
	if p.stopSubmit != nil {
		p.stopSubmit(nil)
		p.stopSubmit = nil
	}
	if err != nil {
		p.status = StatusFailed
		p.submitErr = strings.TrimSpace(err.Error())
		if p.submitErr == "" {
			p.submitErr = SubmitFailedMessage
		}
		logging.Warn().Err(err).Str("panel", p.id).Str("run", runID).Msg("submission failed")
		return true
	}
	if out != nil {
		p.output = *out
		p.hasOutput = true
	}
	p.status = StatusSucceeded
	logging.Info().Str("panel", p.id).Str("run", runID).Msg("submission finished")
	return true
}

// Dispose cancels outstanding work. A disposed panel ignores all results.
func (p *Panel) Dispose() {
	if p.disposed {
		return
	}
	p.cancelDiscovery(ErrPanelDisposed)
	if p.stopSubmit != nil {
		p.stopSubmit(ErrPanelDisposed)
		p.stopSubmit = nil
	}
	p.disposed = true
	logging.Debug().Str("panel", p.id).Msg("panel disposed")
}
