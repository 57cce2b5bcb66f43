// Package project models the active project identifier and the resolvers
// that supply it.
package project

import "strings"

type State int

const (
	// StateUnresolved means the identifier has not been determined yet.
	StateUnresolved State = iota
	// StateMissing means resolution finished and no identifier exists.
	StateMissing
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateMissing:
		return "missing"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// ID is the tri-state project identifier. The zero value is unresolved.
type ID struct {
	state State
	value string
}

func Unresolved() ID { return ID{state: StateUnresolved} }

func Missing() ID { return ID{state: StateMissing} }

// Resolved returns a resolved identifier. A blank value resolves to Missing.
func Resolved(value string) ID {
	value = strings.TrimSpace(value)
	if value == "" {
		return Missing()
	}
	return ID{state: StateResolved, value: value}
}

func (id ID) State() State { return id.state }

// Value returns the identifier and whether it is resolved.
func (id ID) Value() (string, bool) {
	return id.value, id.state == StateResolved
}

func (id ID) IsResolved() bool { return id.state == StateResolved }

func (id ID) IsMissing() bool { return id.state == StateMissing }

func (id ID) IsUnresolved() bool { return id.state == StateUnresolved }

func (id ID) String() string {
	if id.state == StateResolved {
		return id.value
	}
	return "<" + id.state.String() + ">"
}
