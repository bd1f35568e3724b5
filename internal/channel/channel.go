// Package channel provides the push-channel boundary: a "send bytes to
// connection id" primitive over managed duplex sockets, with a
// distinguishable terminal error for sockets that are no longer live.
package channel

import (
	"context"
	"errors"
)

// ErrGone is the terminal delivery error: the peer socket no longer exists.
// The fan-out engine prunes the registry entry when a send fails with it.
var ErrGone = errors.New("connection gone")

// Channel sends a message to one connection. Implementations must return an
// error wrapping ErrGone when the connection is known to be dead, and any
// other error for transient failures.
type Channel interface {
	Send(ctx context.Context, connectionID string, data []byte) error
}

// EventType discriminates connection lifecycle signals.
type EventType string

const (
	EventConnect    EventType = "CONNECT"
	EventDisconnect EventType = "DISCONNECT"
)

// Event is one connection lifecycle signal emitted by the gateway.
type Event struct {
	Type         EventType
	ConnectionID string
}

// EventHandler receives connection lifecycle signals.
type EventHandler func(ctx context.Context, ev Event) error
