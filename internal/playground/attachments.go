package playground

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
)

type DefinitionKind string

const (
	KindTool   DefinitionKind = "tool"
	KindSchema DefinitionKind = "schema"
)

// DefaultParameters is the JSON Schema template offered for new definitions.
const DefaultParameters = `{
  "type": "object",
  "properties": {},
  "required": [],
  "additionalProperties": false
}`

var (
	ErrInvalidParameters = errors.New("Parameters must be valid JSON.")
	ErrNameRequired      = errors.New("Name is required.")
)

// Definition is a tool or structured-output schema. ID is the only
// uniqueness key.
type Definition struct {
	ID          string          `json:"id"`
	Kind        DefinitionKind  `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// NewDefinition validates user input and assigns a fresh id.
func NewDefinition(kind DefinitionKind, name, description, parameters string) (Definition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Definition{}, ErrNameRequired
	}
	if strings.TrimSpace(parameters) == "" {
		parameters = DefaultParameters
	}
	if !json.Valid([]byte(parameters)) {
		return Definition{}, ErrInvalidParameters
	}
	return Definition{
		ID:          kindPrefix(kind) + ulid.Make().String(),
		Kind:        kind,
		Name:        name,
		Description: strings.TrimSpace(description),
		Parameters:  json.RawMessage(parameters),
	}, nil
}

func kindPrefix(kind DefinitionKind) string {
	if kind == KindSchema {
		return "schema-"
	}
	return "tool-"
}

// Attachments holds a panel's tool set and its single schema slot.
type Attachments struct {
	tools  []Definition
	schema *Definition
}

// AddTool is idempotent by id and keeps insertion order.
func (a *Attachments) AddTool(tool Definition) bool {
	for _, t := range a.tools {
		if t.ID == tool.ID {
			return false
		}
	}
	a.tools = append(a.tools, tool)
	return true
}

func (a *Attachments) RemoveTool(id string) {
	kept := a.tools[:0]
	for _, t := range a.tools {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	a.tools = kept
}

func (a *Attachments) HasTool(id string) bool {
	for _, t := range a.tools {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (a *Attachments) Tools() []Definition {
	return append([]Definition(nil), a.tools...)
}

// SetSchema replaces the schema slot.
func (a *Attachments) SetSchema(schema Definition) {
	s := schema
	a.schema = &s
}

// ClearSchema empties the slot only when id names the attached schema.
func (a *Attachments) ClearSchema(id string) bool {
	if a.schema == nil || a.schema.ID != id {
		return false
	}
	a.schema = nil
	return true
}

func (a *Attachments) Schema() (Definition, bool) {
	if a.schema == nil {
		return Definition{}, false
	}
	return *a.schema, true
}

// Counts returns the badge numbers: tools attached and schema present.
func (a *Attachments) Counts() (tools, schemas int) {
	if a.schema != nil {
		schemas = 1
	}
	return len(a.tools), schemas
}
