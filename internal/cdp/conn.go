// Package cdp implements a Chrome DevTools Protocol client over a
// single WebSocket connection: request/response correlation, event
// subscriptions, and wait strategies built on both.
package cdp

import (
	"context"

	"github.com/coder/websocket"
)

// Conn is the subset of a WebSocket connection the client needs.
// Tests substitute in-memory implementations.
type Conn interface {
	// Read blocks until the next message arrives.
	Read(ctx context.Context) (websocket.MessageType, []byte, error)

	// Write sends a single message.
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error

	// Close closes the underlying connection with a status code and reason.
	Close(code websocket.StatusCode, reason string) error
}
