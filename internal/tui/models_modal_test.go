package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yubzen/playground/internal/playground"
	"github.com/yubzen/playground/internal/providers"
)

func testMenu() ([]playground.MenuItem, playground.Selection) {
	conns := []providers.Connection{
		{ID: "c1", Provider: "openai", Adapter: "openai", CustomModels: []string{"gpt-4o", "gpt-4o-mini"}},
		{ID: "c2", Provider: "anthropic", Adapter: "anthropic", CustomModels: []string{"claude-sonnet"}},
	}
	sel := playground.Selection{Provider: "openai", Adapter: "openai", Model: "gpt-4o-mini"}
	return playground.MenuItems(conns, sel), sel
}

func TestModelsModalPreselectsActiveItem(t *testing.T) {
	t.Parallel()

	modal := NewModelsModal()
	items, sel := testMenu()
	modal.SetItems(items, sel)

	opt, ok := modal.SelectedModel()
	if !ok || opt.Item.ID != "c1::gpt-4o-mini" {
		t.Fatalf("expected active item preselected, got %+v", opt)
	}
	if got := len(modal.filtered); got != 4 {
		t.Fatalf("expected 3 models plus add entry, got %d", got)
	}
}

func TestModelsModalCurrentTabAndSearch(t *testing.T) {
	t.Parallel()

	modal := NewModelsModal()
	items, sel := testMenu()
	modal.SetItems(items, sel)

	modal.Update(tea.KeyMsg{Type: tea.KeyTab})
	if modal.activeTab != modelFilterCurrent || len(modal.filtered) != 3 {
		t.Fatalf("expected current tab with 2 models plus add entry, got %d", len(modal.filtered))
	}
	modal.Update(tea.KeyMsg{Type: tea.KeyTab})

	for _, r := range "claude" {
		modal.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if len(modal.filtered) != 2 || modal.filtered[0].Item.Model != "claude-sonnet" {
		t.Fatalf("unexpected filtered list: %+v", modal.filtered)
	}

	action, _ := modal.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !action.Picked || action.Item.Connection.ID != "c2" {
		t.Fatalf("expected anthropic pick, got %+v", action)
	}
}

func TestModelsModalManualEntryKeepsProvider(t *testing.T) {
	t.Parallel()

	modal := NewModelsModal()
	items, sel := testMenu()
	modal.SetItems(items, sel)
	for _, r := range "o3-pro" {
		modal.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	action, _ := modal.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	want := playground.Selection{Provider: "openai", Adapter: "openai", Model: "o3-pro"}
	if !action.Manual || action.Selection != want {
		t.Fatalf("unexpected manual action: %+v", action)
	}
}

func TestModelsModalAddConnectionEntry(t *testing.T) {
	t.Parallel()

	modal := NewModelsModal()
	modal.SetItems(nil, playground.Selection{})

	action, _ := modal.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !action.AddConnection {
		t.Fatalf("expected add connection entry to be the only choice, got %+v", action)
	}
}
