// Package proto holds the protocol identifiers and the signed reservation
// voucher record for the circuit relay v2 HOP/STOP protocol family.
package proto

import "github.com/libp2p/go-libp2p/core/protocol"

const (
	// ProtoIDv2Hop is the codec a client uses to reserve and use a relay slot.
	ProtoIDv2Hop = protocol.ID("/libp2p/circuit/relay/0.2.0/hop")
	// ProtoIDv2Stop is the codec a relay uses to notify the destination of
	// an incoming relayed connection.
	ProtoIDv2Stop = protocol.ID("/libp2p/circuit/relay/0.2.0/stop")
)
