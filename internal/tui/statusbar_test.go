package tui

import (
	"strings"
	"testing"
)

func TestStatusBarShowsWindowCount(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(160)
	if view := sb.View(); !strings.Contains(view, "1 window]") {
		t.Fatalf("expected singular window label, got %q", view)
	}

	sb.Windows = 3
	sb.Project = "proj-1"
	view := sb.View()
	if !strings.Contains(view, "3 windows") || !strings.Contains(view, "proj-1") {
		t.Fatalf("unexpected status bar: %q", view)
	}
}

func TestStatusBarTruncatesNotice(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(70)
	sb.SetNotice(strings.Repeat("long notice ", 20))

	view := sb.View()
	if !strings.Contains(view, "…") {
		t.Fatalf("expected truncated notice, got %q", view)
	}
}

func TestStatusBarShowsRunning(t *testing.T) {
	t.Parallel()

	sb := NewStatusBarModel()
	sb.SetWidth(120)
	if strings.Contains(sb.View(), "RUNNING") {
		t.Fatal("idle status bar must not show running count")
	}
	sb.Running = 2
	if !strings.Contains(sb.View(), "[RUNNING: 2]") {
		t.Fatalf("expected running count, got %q", sb.View())
	}
}
