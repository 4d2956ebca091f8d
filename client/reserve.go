package client

import (
	"context"
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/record"

	"github.com/circuit-relay/hop/pb"
	"github.com/circuit-relay/hop/proto"
	"github.com/circuit-relay/hop/wire"
)

// Reservation is the client-side view of a granted relay slot.
type Reservation struct {
	Expiration time.Time
	Addrs      []ma.Multiaddr
	Limit      pb.Limit
	Voucher    *proto.ReservationVoucher
}

// Reserve opens the HOP stream to relayID and requests a reservation,
// parsing and verifying the signed voucher if the relay included one. The
// stream is always reset before returning -- a reservation exchange is a
// single request/response, not a held connection.
func Reserve(ctx context.Context, h Host, relayID peer.ID) (*Reservation, error) {
	s, err := h.NewStream(ctx, relayID, proto.ProtoIDv2Hop)
	if err != nil {
		return nil, fmt.Errorf("client: open HOP stream to %s: %w", relayID, err)
	}
	defer s.Reset()

	req := &pb.HopMessage{Type: pb.HopMessage_RESERVE.Enum()}
	if err := wire.NewDelimitedWriter(s).WriteMsg(req); err != nil {
		return nil, fmt.Errorf("client: write RESERVE: %w", err)
	}

	var resp pb.HopMessage
	if err := wire.NewDelimitedReader(s, wire.MaxMessageSize).ReadMsg(&resp); err != nil {
		return nil, fmt.Errorf("client: read RESERVE response: %w", err)
	}
	if resp.GetStatus() != pb.Status_OK {
		return nil, fmt.Errorf("client: reservation refused: %s", resp.GetStatus())
	}

	rsvp := resp.GetReservation()
	if rsvp == nil {
		return nil, fmt.Errorf("client: RESERVE response missing reservation")
	}

	out := &Reservation{Expiration: time.Unix(int64(rsvp.GetExpire()), 0)}
	if resp.GetLimit() != nil {
		out.Limit = *resp.GetLimit()
	}
	for _, raw := range rsvp.GetAddrs() {
		a, err := ma.NewMultiaddrBytes(raw)
		if err != nil {
			continue
		}
		out.Addrs = append(out.Addrs, a)
	}

	if voucherBytes := rsvp.GetVoucher(); len(voucherBytes) > 0 {
		_, rec, err := record.ConsumeEnvelope(voucherBytes, proto.RecordDomain)
		if err != nil {
			return nil, fmt.Errorf("client: invalid reservation voucher: %w", err)
		}
		v, ok := rec.(*proto.ReservationVoucher)
		if !ok {
			return nil, fmt.Errorf("client: unexpected voucher record type %T", rec)
		}
		out.Voucher = v
	}

	return out, nil
}
