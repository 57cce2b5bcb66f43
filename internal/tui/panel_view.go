package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/playground/internal/playground"
)

var (
	panelStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	panelFocusStyle   = panelStyle.BorderForeground(lipgloss.Color("39"))
	panelTitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	panelModelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	panelBadgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("244")).Padding(0, 1)
	panelStreamStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("42")).Padding(0, 1)
	panelRemoveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	dividerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	roleLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	roleSystemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	roleAssistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	roleSkippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	selectedMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	outputStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	loadingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	loadingTimerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	disabledStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	readyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LoadingTickMsg is sent periodically while a panel is busy.
type LoadingTickMsg struct{}

func loadingTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return LoadingTickMsg{}
	})
}

// PanelView is the per-panel terminal state that the core does not own:
// the message cursor and the output scroll position.
type PanelView struct {
	cursor  int
	output  viewport.Model
	started time.Time
	width   int
	height  int
}

func NewPanelView() *PanelView {
	return &PanelView{output: viewport.New(0, 0), cursor: -1}
}

func (v *PanelView) SetSize(w, h int) {
	v.width = w
	v.height = h
}

// Cursor returns the selected message index, clamped to the transcript.
func (v *PanelView) Cursor(p *playground.Panel) int {
	n := p.Transcript.Len()
	if n == 0 {
		return -1
	}
	if v.cursor < 0 || v.cursor >= n {
		return n - 1
	}
	return v.cursor
}

func (v *PanelView) MoveCursor(p *playground.Panel, delta int) {
	n := p.Transcript.Len()
	if n == 0 {
		v.cursor = -1
		return
	}
	v.cursor = min(max(v.Cursor(p)+delta, 0), n-1)
}

func (v *PanelView) SetCursor(i int) { v.cursor = i }

func (v *PanelView) ScrollOutput(lines int) {
	if lines < 0 {
		v.output.ScrollUp(-lines)
	} else {
		v.output.ScrollDown(lines)
	}
}

// MarkStarted records the submission start for the elapsed timer.
func (v *PanelView) MarkStarted(now time.Time) { v.started = now }

func (v *PanelView) innerWidth() int {
	return max(16, v.width-4)
}

// View renders the panel. index is its 1-based position.
func (v *PanelView) View(p *playground.Panel, index int, focused, showRemove bool, now time.Time) string {
	width := v.innerWidth()
	lines := []string{v.header(p, index, showRemove)}

	if text := p.Placeholder(); text != "" {
		body := placeholderStyle.Render(wrapToWidth(text, width))
		return v.frame(focused, strings.Join(append(lines, "", body), "\n"))
	}

	lines = append(lines, v.modelLine(p, width), dividerStyle.Render(strings.Repeat("─", width)))
	lines = append(lines, v.transcriptLines(p, width)...)
	lines = append(lines, dividerStyle.Render(strings.Repeat("─", width)))

	footer := v.footer(p, width, now)
	used := len(strings.Split(strings.Join(lines, "\n"), "\n")) + lipgloss.Height(footer) + 2
	v.output.Width = width
	v.output.Height = max(3, v.height-used)
	v.output.SetContent(v.outputText(p, width))
	if p.Submitting() {
		v.output.GotoBottom()
	}
	lines = append(lines, v.output.View(), footer)
	return v.frame(focused, strings.Join(lines, "\n"))
}

func (v *PanelView) frame(focused bool, body string) string {
	style := panelStyle
	if focused {
		style = panelFocusStyle
	}
	if v.width > 0 {
		style = style.Width(v.width - 2)
	}
	if v.height > 0 {
		style = style.Height(v.height - 2)
	}
	return style.Render(body)
}

func (v *PanelView) header(p *playground.Panel, index int, showRemove bool) string {
	title := panelTitleStyle.Render(fmt.Sprintf("#%d", index))
	tools, schemas := p.Attachments.Counts()
	badges := []string{
		panelBadgeStyle.Render(fmt.Sprintf("tools %d", tools)),
		panelBadgeStyle.Render(fmt.Sprintf("schema %d", schemas)),
	}
	if p.Streaming() {
		badges = append(badges, panelStreamStyle.Render("stream"))
	}
	line := title + " " + strings.Join(badges, " ")
	if showRemove {
		line += " " + panelRemoveStyle.Render("[x]")
	}
	return line
}

func (v *PanelView) modelLine(p *playground.Panel, width int) string {
	sel := p.Selection()
	switch {
	case p.Loading():
		return loadingStyle.Render(playground.ReasonLoading)
	case p.DiscoveryErr() != nil:
		return errorStyle.Render(wrapToWidth(p.DiscoveryErr().Error(), width))
	case sel.Provider == "":
		return disabledStyle.Render("No model selected · /models")
	}
	provider := sel.Provider
	if sel.Adapter != "" && sel.Adapter != sel.Provider {
		provider += " (" + sel.Adapter + ")"
	}
	model := sel.Model
	if model == "" {
		model = "<no model>"
	}
	return panelModelStyle.Render(truncate(model+" · "+provider, width))
}

func roleStyle(m playground.Message) lipgloss.Style {
	switch {
	case m.IsPlaceholder():
		return roleSkippedStyle
	case m.Role == playground.RoleSystem || m.Role == playground.RoleDeveloper:
		return roleSystemStyle
	case m.Role == playground.RoleAssistant:
		return roleAssistStyle
	default:
		return roleLabelStyle
	}
}

func (v *PanelView) transcriptLines(p *playground.Panel, width int) []string {
	msgs := p.Transcript.Messages()
	if len(msgs) == 0 {
		return []string{placeholderStyle.Render("No messages yet. Type below and press enter.")}
	}
	cursor := v.Cursor(p)
	var out []string
	for i, m := range msgs {
		marker := "  "
		if i == cursor {
			marker = selectedMsgStyle.Render("> ")
		}
		label := strings.ToUpper(string(m.Role)) + ": "
		content := strings.TrimSpace(m.Content)
		if content == "" {
			content = "…"
		}
		wrapped := wrapWithPrefix(label, content, width-2)
		block := strings.Split(wrapped, "\n")
		if strings.HasPrefix(block[0], label) {
			block[0] = roleStyle(m).Render(label) + strings.TrimPrefix(block[0], label)
		}
		block[0] = marker + block[0]
		for j := 1; j < len(block); j++ {
			block[j] = "  " + block[j]
		}
		out = append(out, block...)
	}
	return out
}

func (v *PanelView) outputText(p *playground.Panel, width int) string {
	if msg := p.SubmitError(); msg != "" {
		return errorStyle.Render(wrapToWidth(msg, width))
	}
	out, ok := p.Output()
	if !ok {
		if p.Submitting() {
			return ""
		}
		return placeholderStyle.Render("Output appears here.")
	}
	return outputStyle.Render(wrapToWidth(out.Display(), width))
}

func (v *PanelView) footer(p *playground.Panel, width int, now time.Time) string {
	if p.Submitting() {
		elapsed := now.Sub(v.started)
		if v.started.IsZero() || elapsed < 0 {
			elapsed = 0
		}
		frame := spinnerFrames[int(elapsed/(250*time.Millisecond))%len(spinnerFrames)]
		return loadingStyle.Render(frame+" Running…") + " " + loadingTimerStyle.Render(formatElapsed(elapsed))
	}
	if reason := p.DisabledReason(); reason != "" {
		return disabledStyle.Render(truncate(reason, width))
	}
	return readyStyle.Render(truncate("ctrl+s: run", width))
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}
