package client

import (
	logging "github.com/ipfs/go-log/v2"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/circuit-relay/hop/gater"
	"github.com/circuit-relay/hop/pb"
	"github.com/circuit-relay/hop/proto"
	"github.com/circuit-relay/hop/wire"
)

var log = logging.Logger("relay/client")

// StopHandler is component H: the acceptor side of the STOP sub-protocol,
// installed by a peer that offers itself as a relay target. It validates
// an inbound CONNECT against the gater, replies with a status, and on
// success hands the resulting duplex stream to accept.
type StopHandler struct {
	host   Host
	gater  *gater.Gater
	accept func(src peer.ID, s Stream)
}

// NewStopHandler constructs a StopHandler. accept is called with the
// originating peer's ID and the live stream for every admitted CONNECT; it
// is invoked synchronously on the STOP handler goroutine and should not
// block.
func NewStopHandler(h Host, g *gater.Gater, accept func(peer.ID, Stream)) *StopHandler {
	return &StopHandler{host: h, gater: g, accept: accept}
}

func (sh *StopHandler) Start() {
	sh.host.SetStreamHandler(proto.ProtoIDv2Stop, sh.handleStream)
}

func (sh *StopHandler) Close() {
	sh.host.RemoveStreamHandler(proto.ProtoIDv2Stop)
}

func (sh *StopHandler) handleStream(stream Stream) {
	var req pb.StopMessage
	if err := wire.NewDelimitedReader(stream, wire.MaxMessageSize).ReadMsg(&req); err != nil {
		log.Debugf("failed to read STOP message: %v", err)
		stream.Reset()
		return
	}

	if req.GetType() != pb.StopMessage_CONNECT || req.GetPeer() == nil {
		sh.reject(stream, pb.Status_MALFORMED_MESSAGE)
		return
	}
	src, err := peer.IDFromBytes(req.GetPeer().GetId())
	if err != nil {
		sh.reject(stream, pb.Status_MALFORMED_MESSAGE)
		return
	}

	relay := stream.Conn().RemotePeer()
	if !sh.gater.AllowInboundRelayedConnection(src, relay) {
		sh.reject(stream, pb.Status_PERMISSION_DENIED)
		return
	}

	resp := &pb.StopMessage{Type: pb.StopMessage_STATUS.Enum(), Status: pb.Status_OK.Enum()}
	if err := wire.NewDelimitedWriter(stream).WriteMsg(resp); err != nil {
		stream.Reset()
		return
	}

	if sh.accept != nil {
		sh.accept(src, stream)
	}
}

func (sh *StopHandler) reject(stream Stream, status pb.Status) {
	resp := &pb.StopMessage{Type: pb.StopMessage_STATUS.Enum(), Status: status.Enum()}
	_ = wire.NewDelimitedWriter(stream).WriteMsg(resp)
	stream.Reset()
}
