package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yubzen/playground/internal/playground"
)

func typeString(t *testing.T, update func(tea.Msg), s string) {
	t.Helper()
	for _, r := range s {
		update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestDefinitionFormCreatesTool(t *testing.T) {
	t.Parallel()

	form := NewDefinitionForm()
	form.SetSize(120, 40)
	form.Open(playground.KindTool, "panel-1")

	update := func(msg tea.Msg) { form.Update(msg) }
	typeString(t, update, "lookup")
	form.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeString(t, update, "Find a record")

	action, _ := form.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if !action.Created {
		t.Fatalf("expected definition to be created, err=%q", form.Err)
	}
	def := action.Definition
	if def.Kind != playground.KindTool || def.Name != "lookup" || def.Description != "Find a record" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	if !strings.HasPrefix(def.ID, "tool-") {
		t.Fatalf("expected tool id prefix, got %q", def.ID)
	}
}

func TestDefinitionFormRejectsInvalidParameters(t *testing.T) {
	t.Parallel()

	form := NewDefinitionForm()
	form.Open(playground.KindSchema, "panel-1")
	typeString(t, func(msg tea.Msg) { form.Update(msg) }, "answer")
	form.parameters.SetValue("{not json")

	action, _ := form.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if action.Created {
		t.Fatal("expected invalid parameters to be rejected")
	}
	if form.Err != playground.ErrInvalidParameters.Error() {
		t.Fatalf("unexpected error %q", form.Err)
	}

	form.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	if action, _ := form.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); !action.Created {
		t.Fatalf("expected reset parameters to validate, err=%q", form.Err)
	}
}

func TestDefinitionFormRequiresName(t *testing.T) {
	t.Parallel()

	form := NewDefinitionForm()
	form.Open(playground.KindTool, "")
	if action, _ := form.Update(tea.KeyMsg{Type: tea.KeyCtrlS}); action.Created {
		t.Fatal("expected empty name to be rejected")
	}
	if form.Err != playground.ErrNameRequired.Error() {
		t.Fatalf("unexpected error %q", form.Err)
	}
}
