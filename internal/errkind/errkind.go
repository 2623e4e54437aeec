// Package errkind implements the error taxonomy from the agent's error
// handling design: config, schema, bridge, tool validation/execution,
// LLM, and storage. Each kind wraps an underlying error
// so callers can branch with errors.As while logs still get %w detail.
package errkind

import "fmt"

// Kind names one of the taxonomy's error categories.
type Kind string

const (
	Config       Kind = "config"
	Schema       Kind = "schema"
	Bridge       Kind = "bridge_not_connected"
	ToolValidate Kind = "tool_validation"
	ToolExecute  Kind = "tool_execution"
	LLM          Kind = "llm"
	Storage      Kind = "storage"
)

// Error pairs a Kind with an underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error of the given kind carrying msg and
// wrapping err, which may be nil.
func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
