package playground

import (
	"context"
	"errors"
	"testing"

	"github.com/yubzen/playground/internal/project"
	"github.com/yubzen/playground/internal/providers"
)

func readyPanel(t *testing.T) *Panel {
	t.Helper()
	p := NewPanel("p1", PanelOptions{Temperature: 0.7})
	req := p.SetProject(project.Resolved("proj"))
	if req == nil {
		t.Fatal("expected discovery request")
	}
	p.ApplyDiscovery(DiscoveryResult{PanelID: "p1", Generation: req.Generation, Connections: sampleConnections})
	p.Transcript.Append(Message{Role: RoleUser, Content: "hello"})
	return p
}

func TestUnresolvedProjectDoesNotFetch(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	if req := p.SetProject(project.Unresolved()); req != nil {
		t.Fatal("unresolved project must not trigger discovery")
	}
	if p.Placeholder() != PlaceholderLoadingProject {
		t.Fatalf("unexpected placeholder %q", p.Placeholder())
	}
	if _, err := p.BeginSubmit(); err == nil {
		t.Fatal("submission must be blocked while the project is unresolved")
	}
}

func TestMissingProjectClearsState(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	if len(p.Connections()) == 0 || p.Selection().IsZero() {
		t.Fatal("expected discovered state")
	}
	if req := p.SetProject(project.Missing()); req != nil {
		t.Fatal("missing project must not fetch")
	}
	if len(p.Connections()) != 0 || !p.Selection().IsZero() || p.Loading() {
		t.Fatalf("expected cleared state, got %+v %+v", p.Connections(), p.Selection())
	}
	if p.Placeholder() != PlaceholderMissingProject {
		t.Fatalf("unexpected placeholder %q", p.Placeholder())
	}
	var notReady *NotReadyError
	if _, err := p.BeginSubmit(); !errors.As(err, &notReady) || notReady.Reason != PlaceholderMissingProject {
		t.Fatalf("expected missing-project rejection, got %v", err)
	}
}

func TestSameProjectTwiceFetchesOnce(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	if p.SetProject(project.Resolved("a")) == nil {
		t.Fatal("expected first fetch")
	}
	if p.SetProject(project.Resolved("a")) != nil {
		t.Fatal("same value must not fetch again")
	}
}

func TestStaleDiscoveryIsNeverApplied(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	p.SetProject(project.Unresolved())
	reqA := p.SetProject(project.Resolved("A"))
	reqB := p.SetProject(project.Resolved("B"))

	if reqA.Ctx.Err() == nil {
		t.Fatal("superseded request must be cancelled")
	}
	if !errors.Is(context.Cause(reqA.Ctx), ErrSuperseded) {
		t.Fatalf("unexpected cause %v", context.Cause(reqA.Ctx))
	}
	if !p.Loading() {
		t.Fatal("B's fetch should be in flight")
	}

	connsB := []providers.Connection{{ID: "b", Provider: "anthropic", CustomModels: []string{"claude"}}}
	if !p.ApplyDiscovery(DiscoveryResult{Generation: reqB.Generation, Connections: connsB}) {
		t.Fatal("B's result should apply")
	}
	// A's success arrives late.
	if p.ApplyDiscovery(DiscoveryResult{Generation: reqA.Generation, Connections: sampleConnections}) {
		t.Fatal("A's result must be dropped")
	}
	if got := p.Connections(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only B's connections, got %+v", got)
	}
	if p.Selection().Provider != "anthropic" || p.Loading() {
		t.Fatalf("unexpected selection/loading %+v %v", p.Selection(), p.Loading())
	}
}

func TestStaleDiscoveryDroppedEvenBeforeNewer(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	reqA := p.SetProject(project.Resolved("A"))
	p.SetProject(project.Resolved("B"))

	if p.ApplyDiscovery(DiscoveryResult{Generation: reqA.Generation, Connections: sampleConnections}) {
		t.Fatal("A's result must be dropped while B is in flight")
	}
	if len(p.Connections()) != 0 || !p.Loading() {
		t.Fatal("state must wait for B")
	}
}

func TestDiscoveryErrorClearsConnections(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	req := p.Refresh()
	if req == nil {
		t.Fatal("expected refresh request")
	}
	authErr := &providers.AuthError{Status: 401, Msg: providers.UnauthorizedMessage}
	if !p.ApplyDiscovery(DiscoveryResult{Generation: req.Generation, Err: authErr}) {
		t.Fatal("error result should apply")
	}
	if !errors.As(p.DiscoveryErr(), &authErr) {
		t.Fatalf("expected auth error, got %v", p.DiscoveryErr())
	}
	if len(p.Connections()) != 0 || !p.Selection().IsZero() || p.Loading() {
		t.Fatal("expected degraded but idle panel")
	}
	if p.DisabledReason() != ReasonProvider {
		t.Fatalf("unexpected reason %q", p.DisabledReason())
	}
}

func TestCancelledDiscoveryResultIsIgnored(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	req := p.SetProject(project.Resolved("A"))
	if p.ApplyDiscovery(DiscoveryResult{Generation: req.Generation, Err: context.Canceled}) {
		t.Fatal("cancelled result must not apply")
	}
}

func TestPlaceholderOnlyTranscriptCannotSubmit(t *testing.T) {
	t.Parallel()

	p := NewPanel("p1", PanelOptions{})
	p.SetProject(project.Resolved("proj"))
	p.Select(Selection{Provider: "openai", Model: "gpt-4o"})
	p.Transcript.Append(Message{Role: RolePlaceholder, Content: "{{vars}}"})
	p.Transcript.Append(Message{Role: RoleUser, Content: "x", Kind: KindPlaceholder})

	if p.CanSubmit() {
		t.Fatal("placeholders alone must not be submittable")
	}
	req := p.Refresh()
	p.ApplyDiscovery(DiscoveryResult{Generation: req.Generation, Err: errors.New("boom")})
	p.Select(Selection{Provider: "openai", Model: "gpt-4o"})
	if got := p.DisabledReason(); got != ReasonNoContent {
		t.Fatalf("expected %q, got %q", ReasonNoContent, got)
	}
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	p.SetStreaming(true)
	p.Transcript.Append(Message{Role: RolePlaceholder, Content: "p"})
	body := p.BuildRequest()

	if body.ProjectID != "proj" || !body.Streaming {
		t.Fatalf("unexpected body %+v", body)
	}
	want := providers.ModelParams{Provider: "openai", Adapter: "openai", Model: "gpt-4o", Temperature: 0.7}
	if body.ModelParams != want {
		t.Fatalf("unexpected model params %+v", body.ModelParams)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages %+v", body.Messages)
	}
}

func TestSubmitRejectsReentry(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	req, err := p.BeginSubmit()
	if err != nil {
		t.Fatalf("begin submit: %v", err)
	}
	if _, err := p.BeginSubmit(); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("expected ErrSubmitInFlight, got %v", err)
	}
	if _, ok := p.Output(); ok {
		t.Fatal("output must be cleared at submit start")
	}

	out := providers.Output{JSON: []byte(`{"content":"hello"}`)}
	if !p.FinishSubmit(req.RunID, &out, nil) {
		t.Fatal("finish should apply")
	}
	if p.FinishSubmit(req.RunID, &out, nil) {
		t.Fatal("finishing twice must be a no-op")
	}
	got, ok := p.Output()
	if !ok || got.Display() != "hello" || p.Status() != StatusSucceeded || p.Submitting() {
		t.Fatalf("unexpected final state %+v %v %v", got, ok, p.Status())
	}
}

func TestSubmitBlockedWhileRediscovering(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	req := p.SetProject(project.Resolved("other"))
	if req == nil || !p.Loading() {
		t.Fatal("expected discovery for the new project")
	}

	_, err := p.BeginSubmit()
	var notReady *NotReadyError
	if !errors.As(err, &notReady) || notReady.Reason != ReasonLoading {
		t.Fatalf("expected %q, got %v", ReasonLoading, err)
	}
	if p.Submitting() {
		t.Fatal("panel must stay idle while connections load")
	}

	if refresh := p.Refresh(); refresh == nil {
		t.Fatal("expected refresh discovery")
	}
	if _, err := p.BeginSubmit(); !errors.As(err, &notReady) || notReady.Reason != ReasonLoading {
		t.Fatalf("refresh must also block submission, got %v", err)
	}
}

func TestSubmitFailureClearsBusy(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	req, _ := p.BeginSubmit()
	p.FinishSubmit(req.RunID, nil, &providers.RequestError{Status: 500, Msg: providers.ChatFailedMessage})
	if p.Submitting() || p.Status() != StatusFailed || p.SubmitError() != providers.ChatFailedMessage {
		t.Fatalf("unexpected state %v %q", p.Status(), p.SubmitError())
	}

	req, err := p.BeginSubmit()
	if err != nil {
		t.Fatalf("panel should be interactive after failure: %v", err)
	}
	p.FinishSubmit(req.RunID, nil, errors.New("   "))
	if p.SubmitError() != SubmitFailedMessage {
		t.Fatalf("expected fallback message, got %q", p.SubmitError())
	}
}

func TestApplyChunkAccumulates(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	p.SetStreaming(true)
	req, _ := p.BeginSubmit()
	if !req.Streaming || !req.Body.Streaming {
		t.Fatal("expected streaming request")
	}

	p.ApplyChunk(req.RunID, "")
	if out, ok := p.Output(); !ok || out.Content != "" {
		t.Fatalf("expected empty content after stream opened, got %+v %v", out, ok)
	}
	p.ApplyChunk(req.RunID, "He")
	p.ApplyChunk("other-run", "XX")
	p.ApplyChunk(req.RunID, "llo")
	p.FinishSubmit(req.RunID, nil, nil)
	p.ApplyChunk(req.RunID, "late")

	if out, _ := p.Output(); out.Content != "Hello" {
		t.Fatalf("unexpected content %q", out.Content)
	}
}

func TestDisposeCancelsWork(t *testing.T) {
	t.Parallel()

	p := readyPanel(t)
	sub, _ := p.BeginSubmit()
	disc := p.Refresh()

	p.Dispose()
	if !errors.Is(context.Cause(sub.Ctx), ErrPanelDisposed) || !errors.Is(context.Cause(disc.Ctx), ErrPanelDisposed) {
		t.Fatal("dispose must cancel outstanding work")
	}
	if p.ApplyDiscovery(DiscoveryResult{Generation: disc.Generation}) {
		t.Fatal("disposed panel must ignore results")
	}
	if p.SetProject(project.Resolved("other")) != nil {
		t.Fatal("disposed panel must not start discovery")
	}
}
