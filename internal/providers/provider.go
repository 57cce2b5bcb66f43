package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Connection is one configured LLM connection of a project.
type Connection struct {
	ID                string   `json:"id"`
	ProjectID         string   `json:"projectId,omitempty"`
	Provider          string   `json:"provider"`
	Adapter           string   `json:"adapter"`
	BaseURL           string   `json:"baseURL,omitempty"`
	DisplaySecretKey  string   `json:"displaySecretKey,omitempty"`
	CustomModels      []string `json:"customModels"`
	WithDefaultModels bool     `json:"withDefaultModels"`
}

// Matches reports whether the connection is identified by provider and
// adapter. An absent adapter compares equal to the empty string.
func (c Connection) Matches(provider, adapter string) bool {
	return c.Provider == provider && c.Adapter == adapter
}

// NewConnection is the input of the connection-management surface.
type NewConnection struct {
	Provider          string   `json:"provider"`
	Adapter           string   `json:"adapter"`
	SecretKey         string   `json:"secretKey"`
	BaseURL           string   `json:"baseURL,omitempty"`
	CustomModels      []string `json:"customModels"`
	WithDefaultModels bool     `json:"withDefaultModels"`
}

func (n NewConnection) Validate() error {
	if strings.TrimSpace(n.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(n.SecretKey) == "" {
		return fmt.Errorf("secret key is required")
	}
	return nil
}

// ChatMessage is one transcript entry in wire form.
type ChatMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ModelParams struct {
	Provider    string  `json:"provider"`
	Adapter     string  `json:"adapter"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// ChatRequest is the body posted to the chat completion endpoint.
type ChatRequest struct {
	ProjectID   string        `json:"projectId"`
	Messages    []ChatMessage `json:"messages"`
	ModelParams ModelParams   `json:"modelParams"`
	Streaming   bool          `json:"streaming"`
}

// Output is the result of a submission. JSON holds a JSON response body
// verbatim; otherwise Content holds the text.
type Output struct {
	JSON    json.RawMessage
	Content string
}

func TextOutput(s string) Output { return Output{Content: s} }

func (o Output) IsJSON() bool { return len(o.JSON) > 0 }

// Display renders the output for humans: text as-is, a JSON string as its
// value, a JSON object's content field when present, anything else as
// indented JSON.
func (o Output) Display() string {
	if !o.IsJSON() {
		return o.Content
	}
	var s string
	if err := json.Unmarshal(o.JSON, &s); err == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(o.JSON, &obj); err == nil {
		if content, ok := present(obj, "content"); ok {
			if err := json.Unmarshal(content, &s); err == nil {
				return s
			}
			return indentJSON(content)
		}
	}
	return indentJSON(o.JSON)
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// AuthError is returned when the backend rejects the session (HTTP 401).
type AuthError struct {
	Status int
	Msg    string
}

func (e *AuthError) Error() string {
	return e.Msg
}

// RequestError is a non-success HTTP response.
type RequestError struct {
	Status int
	Msg    string
}

func (e *RequestError) Error() string {
	return e.Msg
}
