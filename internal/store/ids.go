package store

import "github.com/google/uuid"

// newID generates an opaque identifier for rows that don't have a
// natural external key (chat_id, tool name, job id supplied by the
// caller, etc).
func newID() string {
	return uuid.NewString()
}
