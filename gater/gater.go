// Package gater implements the pluggable authorization hooks (component C)
// consulted before admitting a reservation or proxying a connection. Every
// hook is optional; an unset or false-returning hook permits the action.
package gater

import (
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Gater bundles the three relay-specific authorization predicates. A nil
// *Gater, or a nil field within one, always permits.
type Gater struct {
	// DenyInboundRelayReservation is consulted before admitting a RESERVE.
	DenyInboundRelayReservation func(p peer.ID, addr ma.Multiaddr) bool
	// DenyOutboundRelayedConnection is consulted before dialing STOP for a
	// CONNECT.
	DenyOutboundRelayedConnection func(src, dst peer.ID) bool
	// DenyInboundRelayedConnection is consulted on the target side when
	// accepting an inbound STOP stream.
	DenyInboundRelayedConnection func(src, dst peer.ID) bool
}

func (g *Gater) AllowReservation(p peer.ID, addr ma.Multiaddr) bool {
	if g == nil || g.DenyInboundRelayReservation == nil {
		return true
	}
	return !g.DenyInboundRelayReservation(p, addr)
}

func (g *Gater) AllowOutboundRelayedConnection(src, dst peer.ID) bool {
	if g == nil || g.DenyOutboundRelayedConnection == nil {
		return true
	}
	return !g.DenyOutboundRelayedConnection(src, dst)
}

func (g *Gater) AllowInboundRelayedConnection(src, dst peer.ID) bool {
	if g == nil || g.DenyInboundRelayedConnection == nil {
		return true
	}
	return !g.DenyInboundRelayedConnection(src, dst)
}
