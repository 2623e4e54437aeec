// Package bridge defines the abstract chat-platform adapter the agent
// runtime dispatches through, plus a reference Telegram implementation.
// Other chat platforms implement the same Bridge interface; the kernel
// itself never depends on a specific platform's SDK outside this
// package's concrete adapters.
//
// Grounded on a prior internal/channels.Adapter interface shape and its
// Telegram implementation's Config (token, mode, reconnect/rate-limit
// settings), narrowed to the single send/receive contract this kernel
// needs rather than the full multi-channel registry.
package bridge

import (
	"context"

	"github.com/therenovatio/teleton/internal/domain"
)

// InboundHandler is invoked for every inbound message the bridge
// receives from the chat platform.
type InboundHandler func(ctx context.Context, msg domain.Message, dc domain.DispatchContext)

// Bridge is the contract between the agent runtime and one chat
// platform connection.
type Bridge interface {
	// Connect establishes the platform connection and begins
	// delivering inbound messages to handler until ctx is canceled.
	Connect(ctx context.Context, handler InboundHandler) error

	// Send delivers a reply to chatID.
	Send(ctx context.Context, chatID, text string) error

	// Close tears down the platform connection.
	Close() error

	// Name identifies the bridge for logging and status reporting.
	Name() string
}

// ErrNotConnected is returned by Send when called before Connect has
// established a session.
type ErrNotConnected struct{ Bridge string }

func (e *ErrNotConnected) Error() string {
	return "bridge " + e.Bridge + " is not connected"
}
