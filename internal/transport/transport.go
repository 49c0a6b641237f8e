// Package transport implements spec.md §4.1: frame-accurate byte delivery
// across the fixed set of logical channels, behind one interface with two
// implementations — in-process paired queues for embedded use, ZeroMQ
// sockets for daemon/multi-client use.
package transport

import (
	"errors"
	"fmt"

	"github.com/weftlang/weft/internal/wire"
)

// ErrUnknownChannel is returned by Send/Recv on a channel name the
// transport was not configured with.
var ErrUnknownChannel = errors.New("transport: unknown channel")

// ErrTransportClosed is returned by Send after Shutdown.
var ErrTransportClosed = errors.New("transport: closed")

// BoundEndpoints reports the addresses/ports a transport actually bound to
// (useful when a config requests port 0, i.e. kernel-assigned).
type BoundEndpoints struct {
	IP    string
	Ports map[wire.Channel]int
}

// Transport is the contract every binding implements (spec.md §4.1).
type Transport interface {
	// Bind starts listening per config and returns the endpoints actually
	// bound. Bind failures are fatal to the caller.
	Bind(cfg Config) (BoundEndpoints, error)

	// Connect attaches as a peer instead of a listener (the client side of
	// the same topology). Connect failures are fatal to the caller.
	Connect(cfg Config) error

	// Send writes parts to a channel. parts[0] is the client routing
	// identity on request/reply channels; ignored on iopub.
	Send(channel wire.Channel, parts [][]byte) error

	// Recv returns the next message on a channel, or (nil, nil) if none is
	// currently available. It never blocks.
	Recv(channel wire.Channel) ([][]byte, error)

	// Heartbeat reports liveness of the heartbeat channel.
	Heartbeat() bool

	// Shutdown releases all channel resources. Idempotent.
	Shutdown() error
}

// Config carries bind/connect parameters common to both implementations.
type Config struct {
	TransportKind string // "tcp" | "ipc" — network transport only
	IP            string
	Ports         map[wire.Channel]int // 0 = kernel-assigned (network only)
}

func unknownChannel(ch wire.Channel) error {
	return fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
}
