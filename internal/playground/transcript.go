package playground

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yubzen/playground/internal/providers"
)

// Role is the closed set of transcript roles.
type Role string

const (
	RoleSystem      Role = "system"
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleDeveloper   Role = "developer"
	RolePlaceholder Role = "placeholder"
)

// KindPlaceholder marks a message that is never submitted.
const KindPlaceholder = "placeholder"

var roleOrder = []Role{RoleSystem, RoleUser, RoleAssistant, RoleDeveloper, RolePlaceholder}

// ParseRole accepts any casing. An empty role is a user message.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleUser, nil
	}
	for _, r := range roleOrder {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown message role %q", s)
}

// Next cycles through the editable roles.
func (r Role) Next() Role {
	for i, candidate := range roleOrder {
		if candidate == r {
			return roleOrder[(i+1)%len(roleOrder)]
		}
	}
	return RoleUser
}

// wireType maps a role to the chat message type. Anything that is not
// system, developer or assistant is sent as a user message.
func (r Role) wireType() string {
	switch r {
	case RoleSystem, RoleDeveloper, RoleAssistant:
		return string(r)
	default:
		return string(RoleUser)
	}
}

type Message struct {
	Role    Role
	Content string
	Kind    string
}

func (m Message) IsPlaceholder() bool {
	return m.Kind == KindPlaceholder || m.Role == RolePlaceholder
}

// Transcript is the ordered message list of a panel. Editing is external;
// the submission engine only reads it.
type Transcript struct {
	messages []Message
}

func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

func (t *Transcript) Len() int { return len(t.messages) }

func (t *Transcript) Set(messages []Message) {
	t.messages = append([]Message(nil), messages...)
}

func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

func (t *Transcript) SetContent(i int, content string) error {
	if i < 0 || i >= len(t.messages) {
		return fmt.Errorf("message %d out of range", i)
	}
	t.messages[i].Content = content
	return nil
}

func (t *Transcript) SetRole(i int, role Role) error {
	if i < 0 || i >= len(t.messages) {
		return fmt.Errorf("message %d out of range", i)
	}
	t.messages[i].Role = role
	return nil
}

func (t *Transcript) Remove(i int) error {
	if i < 0 || i >= len(t.messages) {
		return fmt.Errorf("message %d out of range", i)
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	return nil
}

// HasContent reports whether any submittable message has non-blank content.
func (t *Transcript) HasContent() bool {
	for _, m := range t.messages {
		if !m.IsPlaceholder() && strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}

// Wire converts the submittable messages to their request form, trimming
// content.
func (t *Transcript) Wire() []providers.ChatMessage {
	out := make([]providers.ChatMessage, 0, len(t.messages))
	for _, m := range t.messages {
		if m.IsPlaceholder() {
			continue
		}
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		out = append(out, providers.ChatMessage{
			Type:    role.wireType(),
			Role:    string(role),
			Content: strings.TrimSpace(m.Content),
		})
	}
	return out
}

// TranscriptFile is the YAML form used by headless runs.
type TranscriptFile struct {
	Project   string   `yaml:"project"`
	Provider  string   `yaml:"provider"`
	Adapter   string   `yaml:"adapter"`
	Model     string   `yaml:"model"`
	Streaming *bool    `yaml:"streaming"`
	Tools     []string `yaml:"tools"`
	Schema    string   `yaml:"schema"`
	Messages  []struct {
		Role    string `yaml:"role"`
		Content string `yaml:"content"`
		Kind    string `yaml:"kind"`
	} `yaml:"messages"`
}

// LoadTranscript decodes a transcript file, validating every role.
func LoadTranscript(r io.Reader) (*TranscriptFile, []Message, error) {
	var file TranscriptFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("decode transcript: %w", err)
	}
	messages := make([]Message, 0, len(file.Messages))
	for i, raw := range file.Messages {
		role, err := ParseRole(raw.Role)
		if err != nil {
			return nil, nil, fmt.Errorf("message %d: %w", i+1, err)
		}
		messages = append(messages, Message{Role: role, Content: raw.Content, Kind: raw.Kind})
	}
	return &file, messages, nil
}
