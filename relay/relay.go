package relay

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/record"

	"github.com/circuit-relay/hop/gater"
	"github.com/circuit-relay/hop/pb"
	"github.com/circuit-relay/hop/proto"
	"github.com/circuit-relay/hop/reservation"
	"github.com/circuit-relay/hop/splice"
	"github.com/circuit-relay/hop/tag"
	"github.com/circuit-relay/hop/wire"
)

var log = logging.Logger("relay")

// Service is component D: the HOP protocol state machine. It owns the
// reservation store, consults the gater on RESERVE and CONNECT, tags
// reservation holders on the host's connection manager, and hands off
// accepted relayed connections to the splicer after a successful STOP
// handshake with the destination.
type Service struct {
	host      Host
	privKey   crypto.PrivKey
	resources Resources
	gater     *gater.Gater
	metrics   MetricsTracer
	clock     clock.Clock

	store      *reservation.Store
	tagger     *tag.Tagger
	stopDialer *stopDialer

	streams sync.Map // network.Stream-ish (relay.Stream) -> struct{}
}

// New constructs a Service bound to host, signing reservation vouchers
// with privKey. privKey may be nil, in which case reservations are granted
// without a signed voucher.
func New(h Host, privKey crypto.PrivKey, opts ...Option) (*Service, error) {
	s := &Service{
		host:      h,
		privKey:   privKey,
		resources: DefaultResources(),
		clock:     clock.New(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.tagger = tag.New(h.ConnManager(), s.resources.ReservationTagName)
	s.store = reservation.New(s.resources.MaxReservations, s.resources.ReservationTTL,
		reservation.WithClock(s.clock),
		reservation.WithOnExpire(s.onReservationExpire),
	)
	s.stopDialer = newStopDialer(h, s.resources.HandshakeTimeout)
	return s, nil
}

// onReservationExpire runs whenever the reservation store's background
// sweep drops a peer's entry: it releases the connection-manager tag and
// reports the closure to the metrics tracer, mirroring what handleConnect's
// splice goroutine does when a relayed connection ends on its own.
func (s *Service) onReservationExpire(p peer.ID) {
	s.tagger.Untag(p)
	s.trace(func() { s.metrics.ReservationClosed(p) })
}

// Start registers the HOP stream handler on the host.
func (s *Service) Start() {
	s.host.SetStreamHandler(proto.ProtoIDv2Hop, s.handleStream)
}

// Close unregisters the HOP handler, resets every in-flight HOP/STOP stream
// (unblocking any pending read and tearing down any active relay), and
// stops the reservation store's background expiry loop. Idempotent.
func (s *Service) Close() {
	s.host.RemoveStreamHandler(proto.ProtoIDv2Hop)
	s.streams.Range(func(key, _ interface{}) bool {
		key.(Stream).Reset()
		s.streams.Delete(key)
		return true
	})
	s.store.Close()
}

// track registers st as in-flight so Close can Reset it; the returned func
// removes it once the handler (or, for a relayed connection, the splice
// goroutine) is done with it. Safe to call more than once.
func (s *Service) track(st Stream) func() {
	s.streams.Store(st, struct{}{})
	var once sync.Once
	return func() { once.Do(func() { s.streams.Delete(st) }) }
}

func (s *Service) handleStream(stream Stream) {
	untrack := s.track(stream)

	var req pb.HopMessage
	if err := wire.NewDelimitedReader(stream, wire.MaxMessageSize).ReadMsg(&req); err != nil {
		log.Debugf("failed to read HOP message from %s: %v", stream.Conn().RemotePeer(), err)
		stream.Reset()
		untrack()
		return
	}

	switch req.GetType() {
	case pb.HopMessage_RESERVE:
		s.handleReserve(stream)
		untrack()
	case pb.HopMessage_CONNECT:
		s.handleConnect(stream, &req, untrack)
	default:
		s.reject(stream, pb.Status_UNEXPECTED_MESSAGE)
		untrack()
	}
}

func (s *Service) handleReserve(stream Stream) {
	src := stream.Conn().RemotePeer()
	addr := stream.Conn().RemoteMultiaddr()

	if !s.gater.AllowReservation(src, addr) {
		s.reject(stream, pb.Status_PERMISSION_DENIED)
		s.trace(func() { s.metrics.ReservationRefused(src, pb.Status_PERMISSION_DENIED) })
		return
	}

	dataLimit, durationLimit := s.resources.effectiveLimit()

	rsvp, refreshed, err := s.store.Reserve(src, []ma.Multiaddr{addr}, reservation.Limit{
		Data:     dataLimit,
		Duration: durationLimit,
	})
	if err != nil {
		s.reject(stream, pb.Status_RESERVATION_REFUSED)
		s.trace(func() { s.metrics.ReservationRefused(src, pb.Status_RESERVATION_REFUSED) })
		return
	}

	s.tagger.Tag(src, s.resources.ReservationTagValue)

	limit := &pb.Limit{
		Duration: ptrU32(uint32(durationLimit / time.Second)),
		Data:     ptrU64(dataLimit),
	}
	resp := &pb.HopMessage{
		Type:   pb.HopMessage_STATUS.Enum(),
		Status: pb.Status_OK.Enum(),
		Limit:  limit,
		Reservation: &pb.Reservation{
			Expire:  ptrU64(uint64(rsvp.Expire.Unix())),
			Addrs:   addrsToBytes(s.host.Addrs(), src),
			Voucher: s.sealVoucher(src, rsvp.Expire),
		},
	}
	if err := wire.NewDelimitedWriter(stream).WriteMsg(resp); err != nil {
		stream.Reset()
		return
	}
	s.trace(func() { s.metrics.ReservationAllowed(src, refreshed) })
}

func (s *Service) handleConnect(stream Stream, req *pb.HopMessage, untrack func()) {
	src := stream.Conn().RemotePeer()

	if req.GetPeer() == nil || len(req.GetPeer().GetId()) == 0 {
		s.reject(stream, pb.Status_MALFORMED_MESSAGE)
		untrack()
		return
	}
	dst, err := peer.IDFromBytes(req.GetPeer().GetId())
	if err != nil {
		s.reject(stream, pb.Status_MALFORMED_MESSAGE)
		untrack()
		return
	}

	if _, ok := s.store.Get(dst); !ok {
		s.reject(stream, pb.Status_NO_RESERVATION)
		untrack()
		return
	}

	if !s.gater.AllowOutboundRelayedConnection(src, dst) {
		s.reject(stream, pb.Status_PERMISSION_DENIED)
		s.trace(func() { s.metrics.ConnectionRefused(src, dst, pb.Status_PERMISSION_DENIED) })
		untrack()
		return
	}

	dataLimit, durationLimit := s.resources.effectiveLimit()
	limit := &pb.Limit{
		Duration: ptrU32(uint32(durationLimit / time.Second)),
		Data:     ptrU64(dataLimit),
	}

	target, status, err := s.stopDialer.Dial(context.Background(), src, dst, limit)
	if err != nil || status != pb.Status_OK {
		if status == 0 {
			status = pb.Status_CONNECTION_FAILED
		}
		s.reject(stream, status)
		s.trace(func() { s.metrics.ConnectionRefused(src, dst, status) })
		untrack()
		return
	}
	untrackTarget := s.track(target)

	resp := &pb.HopMessage{
		Type:   pb.HopMessage_STATUS.Enum(),
		Status: pb.Status_OK.Enum(),
		Limit:  limit,
	}
	if err := wire.NewDelimitedWriter(stream).WriteMsg(resp); err != nil {
		stream.Reset()
		target.Reset()
		untrack()
		untrackTarget()
		return
	}

	s.trace(func() { s.metrics.ConnectionOpened(src, dst) })

	go func() {
		defer untrack()
		defer untrackTarget()
		stats := splice.Splice(stream, target, splice.Limit{
			Data:     dataLimit,
			Duration: durationLimit,
		}, splice.Options{OnBytes: func(n int) {
			s.trace(func() { s.metrics.BytesTransferred(n) })
		}})
		s.trace(func() { s.metrics.ConnectionClosed(src, dst, stats.Transferred) })
	}()
}

func (s *Service) reject(stream Stream, status pb.Status) {
	resp := &pb.HopMessage{Type: pb.HopMessage_STATUS.Enum(), Status: status.Enum()}
	_ = wire.NewDelimitedWriter(stream).WriteMsg(resp)
	stream.Reset()
}

// trace invokes fn iff a MetricsTracer is installed, so every call site
// above can report unconditionally.
func (s *Service) trace(fn func()) {
	if s.metrics != nil {
		fn()
	}
}

func (s *Service) sealVoucher(p peer.ID, expire time.Time) []byte {
	if s.privKey == nil {
		return nil
	}
	rv := &proto.ReservationVoucher{Relay: s.host.ID(), Peer: p, Expiration: expire}
	envelope, err := record.Seal(rv, s.privKey)
	if err != nil {
		log.Warnf("failed to seal reservation voucher for %s: %v", p, err)
		return nil
	}
	raw, err := envelope.Marshal()
	if err != nil {
		log.Warnf("failed to marshal voucher envelope for %s: %v", p, err)
		return nil
	}
	return raw
}

// addrsToBytes renders the relay's own external addresses as the dialable
// circuit addresses for src, per spec.md §4.D step 2 ("the relay's own
// external addresses plus /p2p/<remotePeer>/p2p-circuit"): each relay addr
// is encapsulated with /p2p/<src>/p2p-circuit so a third party can dial
// straight through this reservation.
func addrsToBytes(relayAddrs []ma.Multiaddr, src peer.ID) [][]byte {
	circuitAddrs := relayCircuitAddrs(relayAddrs, src)
	out := make([][]byte, len(circuitAddrs))
	for i, a := range circuitAddrs {
		out[i] = a.Bytes()
	}
	return out
}

func relayCircuitAddrs(relayAddrs []ma.Multiaddr, src peer.ID) []ma.Multiaddr {
	p2pSrc, err := ma.NewComponent("p2p", src.String())
	if err != nil {
		log.Warnf("failed to build /p2p component for %s: %v", src, err)
		return relayAddrs
	}
	circuit, err := ma.NewMultiaddr("/p2p-circuit")
	if err != nil {
		log.Warnf("failed to build /p2p-circuit component: %v", err)
		return relayAddrs
	}
	out := make([]ma.Multiaddr, 0, len(relayAddrs))
	for _, addr := range relayAddrs {
		out = append(out, addr.Encapsulate(p2pSrc).Encapsulate(circuit))
	}
	return out
}

func ptrU32(v uint32) *uint32 { return &v }
func ptrU64(v uint64) *uint64 { return &v }
