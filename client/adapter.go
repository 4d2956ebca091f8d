package client

import (
	"context"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// hostAdapter narrows a real libp2p host.Host down to Host.
type hostAdapter struct {
	h host.Host
}

// NewHostAdapter wraps a real libp2p host for use by Reserve and
// StopHandler.
func NewHostAdapter(h host.Host) Host {
	return &hostAdapter{h: h}
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

// streamAdapter narrows a network.Stream's Conn() return type from
// network.Conn down to Conn.
type streamAdapter struct {
	network.Stream
}

func (s streamAdapter) Conn() Conn {
	return s.Stream.Conn()
}
