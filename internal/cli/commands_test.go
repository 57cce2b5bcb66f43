package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/providers"
	"github.com/yubzen/playground/internal/state"
	"github.com/yubzen/playground/internal/stubserver"
)

type memoryRunStore struct {
	mu   sync.Mutex
	defs []playground.Definition
	runs []state.Run
}

func (s *memoryRunStore) ListDefinitions(_ context.Context, kind playground.DefinitionKind) ([]playground.Definition, error) {
	var out []playground.Definition
	for _, d := range s.defs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memoryRunStore) RecordRun(_ context.Context, r state.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, r)
	return nil
}

func newStubBackend(t *testing.T) *providers.Client {
	t.Helper()
	srv := stubserver.New(stubserver.Config{SessionCookie: "sid", Session: "secret"})
	srv.Seed("proj", providers.Connection{ID: "c1", Provider: "openai", Adapter: "openai", CustomModels: []string{"gpt-4o"}})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return providers.NewClient(providers.Options{
		BaseURL:       ts.URL,
		SessionCookie: "sid",
		Session:       "secret",
		Timeout:       5 * time.Second,
	})
}

func headlessTranscript(t *testing.T, src string) (*playground.TranscriptFile, []playground.Message) {
	t.Helper()
	file, msgs, err := playground.LoadTranscript(strings.NewReader(src))
	require.NoError(t, err)
	return file, msgs
}

func TestRunHeadlessBuffered(t *testing.T) {
	t.Parallel()

	backend := newStubBackend(t)
	store := &memoryRunStore{}
	file, msgs := headlessTranscript(t, `
project: proj
messages:
  - role: system
    content: be brief
  - role: user
    content: hello there
`)

	var out bytes.Buffer
	err := RunHeadless(context.Background(), &out, backend, store, HeadlessOptions{
		ProjectID: file.Project, File: file, Messages: msgs, Temperature: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, "[openai/gpt-4o] hello there\n", out.String())

	require.Len(t, store.runs, 1)
	assert.Equal(t, "succeeded", store.runs[0].Status)
	assert.Equal(t, "gpt-4o", store.runs[0].Model)
	assert.False(t, store.runs[0].Streaming)
}

func TestRunHeadlessStreamsWithModelOverride(t *testing.T) {
	t.Parallel()

	backend := newStubBackend(t)
	file, msgs := headlessTranscript(t, `
model: gpt-4o-mini
messages:
  - content: stream me please
`)

	var out bytes.Buffer
	err := RunHeadless(context.Background(), &out, backend, nil, HeadlessOptions{
		ProjectID: "proj", File: file, Messages: msgs, Streaming: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "[openai/gpt-4o-mini] stream me please\n", out.String())
}

func TestRunHeadlessRequiresProject(t *testing.T) {
	t.Parallel()

	err := RunHeadless(context.Background(), &bytes.Buffer{}, newStubBackend(t), nil, HeadlessOptions{})
	require.Error(t, err)
	assert.Equal(t, playground.PlaceholderMissingProject, err.Error())
}

func TestRunHeadlessRejectsEmptyTranscript(t *testing.T) {
	t.Parallel()

	file, msgs := headlessTranscript(t, "messages: []\n")
	err := RunHeadless(context.Background(), &bytes.Buffer{}, newStubBackend(t), nil, HeadlessOptions{
		ProjectID: "proj", File: file, Messages: msgs,
	})
	var notReady *playground.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, playground.ReasonNoContent, notReady.Reason)
}

func TestRunHeadlessAttachesCatalogItems(t *testing.T) {
	t.Parallel()

	tool, err := playground.NewDefinition(playground.KindTool, "lookup", "", `{"type":"object"}`)
	require.NoError(t, err)
	store := &memoryRunStore{defs: []playground.Definition{tool}}

	file, msgs := headlessTranscript(t, `
tools: [lookup]
schema: missing
messages:
  - content: hi
`)
	err = RunHeadless(context.Background(), &bytes.Buffer{}, newStubBackend(t), store, HeadlessOptions{
		ProjectID: "proj", File: file, Messages: msgs,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `schema "missing" not found`)
	assert.Empty(t, store.runs)
}

func TestRunHeadlessUnauthorized(t *testing.T) {
	t.Parallel()

	srv := stubserver.New(stubserver.Config{SessionCookie: "sid", Session: "secret"})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	backend := providers.NewClient(providers.Options{BaseURL: ts.URL, SessionCookie: "sid", Session: "wrong"})

	file, msgs := headlessTranscript(t, "messages:\n  - content: hi\n")
	err := RunHeadless(context.Background(), &bytes.Buffer{}, backend, nil, HeadlessOptions{
		ProjectID: "proj", File: file, Messages: msgs,
	})
	var authErr *providers.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]playground.DefinitionKind{
		"tool": playground.KindTool, "Tools": playground.KindTool, " schema ": playground.KindSchema,
	} {
		got, err := parseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := parseKind("widget")
	assert.Error(t, err)
}

func TestPrintRunsAndConnections(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, printRuns(&out, nil))
	assert.Contains(t, out.String(), "No runs recorded yet.")

	out.Reset()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, printRuns(&out, []state.Run{{
		Status: "failed", Model: "gpt-4o", Provider: "openai",
		Error: "boom", StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	}}))
	assert.Contains(t, out.String(), "failed")
	assert.Contains(t, out.String(), "1.5s")
	assert.Contains(t, out.String(), "boom")

	out.Reset()
	require.NoError(t, printConnections(&out, []providers.Connection{{Provider: "anthropic", Adapter: "anthropic", CustomModels: []string{"a", "b"}}}))
	assert.Contains(t, out.String(), "a, b")
	assert.Contains(t, out.String(), "-")
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b", preview("a\n  b", 10))
	assert.Equal(t, "abcd…", preview("abcdefgh", 5))
}
