// Package protocol defines the contract between the session controller and
// the library that speaks XMPP, and provides an implementation backed by
// mellium.im/xmpp.
package protocol

import (
	"context"
	"errors"
)

// DefaultPort is the standard client-to-server port.
const DefaultPort = 5222

// ErrReleased is returned by operations on a connection handle after Release.
var ErrReleased = errors.New("connection released")

// ErrNotConnected is returned by SendRaw before the stream is negotiated.
var ErrNotConnected = errors.New("not connected")

// Observer receives connection lifecycle events.
// Events are delivered on library goroutines.
type Observer interface {
	// OnConnected is called once the stream is authenticated and bound.
	OnConnected()

	// OnDisconnected is called when a connection attempt fails or an
	// established stream ends without Disconnect having been called.
	OnDisconnected(err error)
}

// MessageHandler receives every top-level stanza as raw XML text.
type MessageHandler interface {
	OnMessage(raw string)
}

// Library is the process-wide protocol context. It owns the event loop that
// every connection created from it runs on.
type Library interface {
	NewConnection() Conn

	// Run blocks running the event loop until Stop is called or ctx is done.
	Run(ctx context.Context) error

	Stop()
}

// Conn is a single connection handle.
type Conn interface {
	SetJID(jid string)
	SetPassword(password string)

	// Connect schedules the connection attempt on the library event loop and
	// returns immediately. A non-nil error means the attempt was never
	// scheduled and obs will not be called.
	Connect(host string, port int, obs Observer) error

	AddMessageHandler(h MessageHandler)

	// SendRaw writes text to the stream unmodified.
	SendRaw(ctx context.Context, text string) error

	Disconnect()

	// Release frees the handle. It must be called exactly once.
	Release()
}
