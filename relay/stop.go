package relay

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/circuit-relay/hop/pb"
	"github.com/circuit-relay/hop/proto"
	"github.com/circuit-relay/hop/wire"
)

// stopDialer is component E: it opens a STOP stream to a reserved
// destination and runs the STOP handshake on behalf of an inbound HOP
// CONNECT. Concurrent dials to the same destination share a single
// Connect call -- the expensive, poolable part -- but each gets its own
// stream and handshake, since a stream can't be handed to two callers.
type stopDialer struct {
	host    Host
	timeout time.Duration
	group   singleflight.Group
}

func newStopDialer(h Host, timeout time.Duration) *stopDialer {
	return &stopDialer{host: h, timeout: timeout}
}

func (d *stopDialer) ensureConnected(ctx context.Context, dst peer.ID) error {
	_, err, _ := d.group.Do(dst.String(), func() (interface{}, error) {
		return nil, d.host.Connect(ctx, dst)
	})
	return err
}

// Dial performs the STOP handshake for a relayed connection from src to
// dst under limit. It returns the opened target stream only on
// pb.Status_OK; on any other status the caller should relay that status
// back to src and the returned stream is nil.
func (d *stopDialer) Dial(ctx context.Context, src, dst peer.ID, limit *pb.Limit) (Stream, pb.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.ensureConnected(ctx, dst); err != nil {
		return nil, pb.Status_CONNECTION_FAILED, fmt.Errorf("stop: connect to %s: %w", dst, err)
	}

	s, err := d.host.NewStream(ctx, dst, proto.ProtoIDv2Stop)
	if err != nil {
		return nil, pb.Status_CONNECTION_FAILED, fmt.Errorf("stop: new stream to %s: %w", dst, err)
	}

	req := &pb.StopMessage{
		Type:  pb.StopMessage_CONNECT.Enum(),
		Peer:  &pb.Peer{Id: []byte(src)},
		Limit: limit,
	}
	if err := wire.NewDelimitedWriter(s).WriteMsg(req); err != nil {
		s.Reset()
		return nil, pb.Status_CONNECTION_FAILED, fmt.Errorf("stop: write CONNECT: %w", err)
	}

	var resp pb.StopMessage
	if err := wire.NewDelimitedReader(s, wire.MaxMessageSize).ReadMsg(&resp); err != nil {
		s.Reset()
		return nil, pb.Status_CONNECTION_FAILED, fmt.Errorf("stop: read status: %w", err)
	}

	if resp.GetType() != pb.StopMessage_STATUS || resp.GetStatus() != pb.Status_OK {
		s.Reset()
		status := resp.GetStatus()
		if status == 0 || status == pb.Status_OK {
			status = pb.Status_CONNECTION_FAILED
		}
		return nil, status, nil
	}

	return s, pb.Status_OK, nil
}
