// Package relay implements the HOP state machine (component D), the STOP
// dialer (component E), and the supporting configuration and metrics glue
// that make up the relay service.
package relay

import (
	"context"
	"io"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/circuit-relay/hop/tag"
)

// Conn is the narrow per-stream peer-identity surface the relay consults --
// who is on the other end of a stream, and through what address.
type Conn interface {
	RemotePeer() peer.ID
	RemoteMultiaddr() ma.Multiaddr
}

// Stream is the narrow duplex surface the relay and splicer need from a
// libp2p stream. A real network.Stream satisfies it without adaptation;
// streamAdapter below only narrows its Conn() return type.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	Reset() error
	Conn() Conn
}

// Host is the set of host operations the relay consumes: connecting to and
// opening streams toward a destination, registering the HOP handler, and
// reading the relay's own advertised addresses for reservation responses.
// It deliberately omits everything else host.Host exposes (peerstore,
// eventbus, network-level accessors) -- the relay never touches them.
type Host interface {
	ID() peer.ID
	Addrs() []ma.Multiaddr
	Connect(ctx context.Context, p peer.ID) error
	NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error)
	SetStreamHandler(pid protocol.ID, handler func(Stream))
	RemoveStreamHandler(pid protocol.ID)
	ConnManager() tag.ConnManager
}

// hostAdapter narrows a real libp2p host.Host down to Host.
type hostAdapter struct {
	h host.Host
}

// NewHostAdapter wraps a real libp2p host for use by the relay service.
func NewHostAdapter(h host.Host) Host {
	return &hostAdapter{h: h}
}

func (a *hostAdapter) ID() peer.ID          { return a.h.ID() }
func (a *hostAdapter) Addrs() []ma.Multiaddr { return a.h.Addrs() }

func (a *hostAdapter) Connect(ctx context.Context, p peer.ID) error {
	return a.h.Connect(ctx, peer.AddrInfo{ID: p})
}

func (a *hostAdapter) NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error) {
	s, err := a.h.NewStream(ctx, p, pids...)
	if err != nil {
		return nil, err
	}
	return streamAdapter{s}, nil
}

func (a *hostAdapter) SetStreamHandler(pid protocol.ID, handler func(Stream)) {
	a.h.SetStreamHandler(pid, func(s network.Stream) {
		handler(streamAdapter{s})
	})
}

func (a *hostAdapter) RemoveStreamHandler(pid protocol.ID) {
	a.h.RemoveStreamHandler(pid)
}

func (a *hostAdapter) ConnManager() tag.ConnManager {
	return a.h.ConnManager()
}

// streamAdapter narrows a network.Stream's Conn() return type from
// network.Conn down to Conn; every other method is promoted unchanged.
type streamAdapter struct {
	network.Stream
}

func (s streamAdapter) Conn() Conn {
	return s.Stream.Conn()
}
