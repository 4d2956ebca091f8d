// Package client implements the peer-facing half of the relay protocol:
// reserving a slot on a relay (the Reserve helper) and accepting inbound
// relayed connections as a relay target (StopHandler, component H).
package client

import (
	"context"
	"io"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// Conn is the narrow per-stream peer-identity surface this package needs.
type Conn interface {
	RemotePeer() peer.ID
}

// Stream is the narrow duplex surface this package needs from a libp2p
// stream; a real network.Stream satisfies it without any adaptation needed
// beyond narrowing Conn(), same as relay.Stream.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	Reset() error
	Conn() Conn
}

// Host is the narrow host surface this package needs: opening the HOP
// stream to reserve, and registering the STOP handler to accept relayed
// connections.
type Host interface {
	NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error)
	SetStreamHandler(pid protocol.ID, handler func(Stream))
	RemoveStreamHandler(pid protocol.ID)
}
