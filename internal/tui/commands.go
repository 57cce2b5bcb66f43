package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yubzen/playground/internal/playground"
)

type CommandResultMsg struct {
	Msg string
}

type (
	AddPanelMsg         struct{}
	DuplicatePanelMsg   struct{}
	RemovePanelMsg      struct{}
	ResetPlaygroundMsg  struct{}
	ToggleStreamingMsg  struct{}
	RefreshPanelMsg     struct{}
	ClearTranscriptMsg  struct{}
	OpenModelsModalMsg  struct{}
	OpenConnectModalMsg struct{}
)

// SubmitMsg runs the focused panel, or every ready panel when All is set.
type SubmitMsg struct{ All bool }

type OpenPickerMsg struct{ Kind playground.DefinitionKind }

type OpenDefinitionFormMsg struct{ Kind playground.DefinitionKind }

// SetRoleMsg changes the role new messages are composed with.
type SetRoleMsg struct{ Role playground.Role }

type slashCommand struct {
	Name        string
	Description string
}

var slashCommands = []slashCommand{
	{Name: "/run", Description: "Run the focused panel"},
	{Name: "/runall", Description: "Run every panel that is ready"},
	{Name: "/models", Description: "Pick a saved model or type one"},
	{Name: "/connect", Description: "Add an LLM connection"},
	{Name: "/tools", Description: "Attach or detach tools"},
	{Name: "/schema", Description: "Choose the structured output schema"},
	{Name: "/newtool", Description: "Create a tool definition"},
	{Name: "/newschema", Description: "Create a schema definition"},
	{Name: "/role", Description: "Set the role for new messages"},
	{Name: "/stream", Description: "Toggle streaming for the focused panel"},
	{Name: "/add", Description: "Add a panel"},
	{Name: "/dup", Description: "Duplicate the focused panel"},
	{Name: "/remove", Description: "Remove the focused panel"},
	{Name: "/reset", Description: "Reset the playground to one panel"},
	{Name: "/refresh", Description: "Reload LLM connections"},
	{Name: "/clear", Description: "Clear the focused transcript"},
}

func filterSlashCommands(input string, limit int) []slashCommand {
	if limit <= 0 {
		limit = len(slashCommands)
	}
	raw := strings.TrimSpace(input)
	if !strings.HasPrefix(raw, "/") {
		return nil
	}

	query := strings.ToLower(strings.TrimPrefix(strings.Fields(raw)[0], "/"))
	if query == "" {
		return slashCommands[:min(limit, len(slashCommands))]
	}

	matches := make([]slashCommand, 0, limit)
	// Prefix matches first, then substring matches.
	for _, c := range slashCommands {
		if len(matches) < limit && strings.HasPrefix(strings.TrimPrefix(c.Name, "/"), query) {
			matches = append(matches, c)
		}
	}
	for _, c := range slashCommands {
		name := strings.TrimPrefix(c.Name, "/")
		if len(matches) < limit && !strings.HasPrefix(name, query) && strings.Contains(name, query) {
			matches = append(matches, c)
		}
	}
	return matches
}

func normalizeSlashCommand(input string) (string, []string) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}

// classifyUserInput trims raw input and reports whether it is a command.
func classifyUserInput(raw string) (trimmed string, isCommand bool) {
	trimmed = strings.TrimSpace(raw)
	return trimmed, strings.HasPrefix(trimmed, "/")
}

func handleSlashCommand(cmdStr string) tea.Cmd {
	return func() tea.Msg {
		name, args := normalizeSlashCommand(cmdStr)
		switch name {
		case "/run":
			return SubmitMsg{}
		case "/runall":
			return SubmitMsg{All: true}
		case "/models":
			return OpenModelsModalMsg{}
		case "/connect":
			return OpenConnectModalMsg{}
		case "/tools":
			return OpenPickerMsg{Kind: playground.KindTool}
		case "/schema":
			return OpenPickerMsg{Kind: playground.KindSchema}
		case "/newtool":
			return OpenDefinitionFormMsg{Kind: playground.KindTool}
		case "/newschema":
			return OpenDefinitionFormMsg{Kind: playground.KindSchema}
		case "/role":
			if len(args) == 0 {
				return CommandResultMsg{Msg: "Usage: /role system|user|assistant|developer|placeholder"}
			}
			role, err := playground.ParseRole(args[0])
			if err != nil {
				return CommandResultMsg{Msg: err.Error()}
			}
			return SetRoleMsg{Role: role}
		case "/stream":
			return ToggleStreamingMsg{}
		case "/add":
			return AddPanelMsg{}
		case "/dup":
			return DuplicatePanelMsg{}
		case "/remove":
			return RemovePanelMsg{}
		case "/reset":
			return ResetPlaygroundMsg{}
		case "/refresh":
			return RefreshPanelMsg{}
		case "/clear":
			return ClearTranscriptMsg{}
		default:
			if suggestions := filterSlashCommands(cmdStr, 1); len(suggestions) == 1 {
				return CommandResultMsg{Msg: fmt.Sprintf("Unknown command: %s. Did you mean %s?", cmdStr, suggestions[0].Name)}
			}
			return CommandResultMsg{Msg: fmt.Sprintf("Unknown command: %s", cmdStr)}
		}
	}
}
