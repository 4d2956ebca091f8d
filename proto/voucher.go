package proto

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/record"

	pbv2 "github.com/circuit-relay/hop/pb"
)

// RecordDomain and RecordCodec identify the signed envelope a relay seals
// a ReservationVoucher inside of.
const RecordDomain = "libp2p-relay-rsvp"

var RecordCodec = []byte{0x03, 0x02}

func init() {
	record.RegisterType(&ReservationVoucher{})
}

// ReservationVoucher is a signed statement by a relay that it has granted
// peer a reservation expiring at Expiration. It travels inside
// HopMessage.Reservation.Voucher as a sealed record.Envelope.
type ReservationVoucher struct {
	// Relay is the ID of the peer providing relay service.
	Relay peer.ID
	// Peer is the ID of the peer receiving relay service through Relay.
	Peer peer.ID
	// Expiration is the expiration time of the reservation.
	Expiration time.Time
}

var _ record.Record = (*ReservationVoucher)(nil)

func (rv *ReservationVoucher) Domain() string {
	return RecordDomain
}

func (rv *ReservationVoucher) Codec() []byte {
	return RecordCodec
}

func (rv *ReservationVoucher) MarshalRecord() ([]byte, error) {
	expiration := uint64(rv.Expiration.Unix())
	return (&pbv2.ReservationVoucher{
		Relay:      []byte(rv.Relay),
		Peer:       []byte(rv.Peer),
		Expiration: &expiration,
	}).Marshal()
}

func (rv *ReservationVoucher) UnmarshalRecord(blob []byte) error {
	var pbrv pbv2.ReservationVoucher
	if err := pbrv.Unmarshal(blob); err != nil {
		return err
	}

	var err error
	rv.Relay, err = peer.IDFromBytes(pbrv.GetRelay())
	if err != nil {
		return err
	}

	rv.Peer, err = peer.IDFromBytes(pbrv.GetPeer())
	if err != nil {
		return err
	}

	rv.Expiration = time.Unix(int64(pbrv.GetExpiration()), 0)
	return nil
}
