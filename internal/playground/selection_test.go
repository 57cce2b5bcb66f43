package playground

import (
	"reflect"
	"testing"

	"github.com/yubzen/playground/internal/providers"
)

var sampleConnections = []providers.Connection{
	{ID: "c1", Provider: "openai", Adapter: "openai", CustomModels: []string{"gpt-4o", "gpt-4o-mini"}},
	{ID: "c2", Provider: "anthropic", CustomModels: []string{"claude-sonnet"}},
	{ID: "c3", Provider: "openai", Adapter: "azure"},
}

func TestCurrentConnectionMatchesProviderAndAdapter(t *testing.T) {
	t.Parallel()

	c, ok := CurrentConnection(sampleConnections, Selection{Provider: "openai", Adapter: "azure"})
	if !ok || c.ID != "c3" {
		t.Fatalf("expected c3, got %+v %v", c, ok)
	}
	c, ok = CurrentConnection(sampleConnections, Selection{Provider: "anthropic"})
	if !ok || c.ID != "c2" {
		t.Fatalf("empty adapter should match absent adapter, got %+v %v", c, ok)
	}
	if _, ok := CurrentConnection(sampleConnections, Selection{Provider: "google"}); ok {
		t.Fatal("unexpected match")
	}
}

func TestAvailableModels(t *testing.T) {
	t.Parallel()

	got := AvailableModels(sampleConnections, Selection{Provider: "openai", Adapter: "openai"})
	if !reflect.DeepEqual(got, []string{"gpt-4o", "gpt-4o-mini"}) {
		t.Fatalf("unexpected models %v", got)
	}
	if got := AvailableModels(sampleConnections, Selection{Provider: "openai", Adapter: "azure"}); len(got) != 0 {
		t.Fatalf("expected no models, got %v", got)
	}
	if got := AvailableModels(nil, Selection{Provider: "openai"}); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestMenuItemsFlattenPairs(t *testing.T) {
	t.Parallel()

	items := MenuItems(sampleConnections, Selection{Provider: "openai", Adapter: "openai", Model: "gpt-4o-mini"})
	var ids []string
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	want := []string{"c1::gpt-4o", "c1::gpt-4o-mini", "c2::claude-sonnet"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("unexpected ids %v", ids)
	}
	if items[0].Active || !items[1].Active || items[2].Active {
		t.Fatalf("unexpected active flags %+v", items)
	}
	if sel := SelectionFor(items[2].Connection, items[2].Model); sel != (Selection{Provider: "anthropic", Model: "claude-sonnet"}) {
		t.Fatalf("unexpected selection %+v", sel)
	}
}

func TestInitialSelection(t *testing.T) {
	t.Parallel()

	if sel := initialSelection(sampleConnections); sel != (Selection{Provider: "openai", Adapter: "openai", Model: "gpt-4o"}) {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if sel := initialSelection(sampleConnections[2:]); sel != (Selection{Provider: "openai", Adapter: "azure"}) {
		t.Fatalf("connection without models should leave model empty, got %+v", sel)
	}
	if !initialSelection(nil).IsZero() {
		t.Fatal("empty list should clear the selection")
	}
}

func TestDisabledReasonPrecedence(t *testing.T) {
	t.Parallel()

	full := Selection{Provider: "openai", Model: "gpt-4o"}
	cases := []struct {
		loading bool
		sel     Selection
		content bool
		want    string
	}{
		{true, Selection{}, false, ReasonLoading},
		{true, full, true, ReasonLoading},
		{false, Selection{}, true, ReasonProvider},
		{false, Selection{Provider: "openai"}, false, ReasonModel},
		{false, full, false, ReasonNoContent},
		{false, full, true, ""},
	}
	for i, tc := range cases {
		if got := DisabledReason(tc.loading, tc.sel, tc.content); got != tc.want {
			t.Fatalf("case %d: got %q, want %q", i, got, tc.want)
		}
	}
}
