package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const minPanelWidth = 34

func wrapToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	wrapper := lipgloss.NewStyle().Width(width)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			out = append(out, "")
			continue
		}
		for _, wrapped := range strings.Split(wrapper.Render(line), "\n") {
			out = append(out, strings.TrimRight(wrapped, " "))
		}
	}
	return strings.Join(out, "\n")
}

// wrapWithPrefix wraps content after prefix, indenting continuation lines
// to the prefix width.
func wrapWithPrefix(prefix, content string, width int) string {
	if width <= 0 {
		return prefix + content
	}
	prefixWidth := lipgloss.Width(prefix)
	if prefixWidth >= width {
		return wrapToWidth(prefix+content, width)
	}

	lines := strings.Split(wrapToWidth(content, width-prefixWidth), "\n")
	indent := strings.Repeat(" ", prefixWidth)
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = indent + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// panelColumns splits total width across n panels. When the panels do not
// fit at minPanelWidth, only a window of visible panels around focus is
// laid out; first is the index of the leftmost visible panel.
func panelColumns(total, n, focus int) (first, visible, width int) {
	if n <= 0 {
		return 0, 0, total
	}
	if total <= 0 {
		return 0, n, minPanelWidth
	}
	visible = total / minPanelWidth
	if visible < 1 {
		visible = 1
	}
	if visible > n {
		visible = n
	}
	first = focus - visible/2
	if first+visible > n {
		first = n - visible
	}
	if first < 0 {
		first = 0
	}
	return first, visible, total / visible
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
