package relay

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/test"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/circuit-relay/hop/gater"
	"github.com/circuit-relay/hop/pb"
	"github.com/circuit-relay/hop/reservation"
	"github.com/circuit-relay/hop/tag"
	"github.com/circuit-relay/hop/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeConn struct {
	remote     peer.ID
	remoteAddr ma.Multiaddr
}

func (c fakeConn) RemotePeer() peer.ID           { return c.remote }
func (c fakeConn) RemoteMultiaddr() ma.Multiaddr { return c.remoteAddr }

type fakeStream struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	conn fakeConn
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeStream) CloseWrite() error           { return f.w.Close() }
func (f *fakeStream) Reset() error                { f.r.Close(); f.w.Close(); return nil }
func (f *fakeStream) Conn() Conn                  { return f.conn }

func newFakeStreamPair(local, remote peer.ID, remoteAddr ma.Multiaddr) (a, b *fakeStream) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a = &fakeStream{r: ar, w: aw, conn: fakeConn{remote: remote, remoteAddr: remoteAddr}}
	b = &fakeStream{r: br, w: bw, conn: fakeConn{remote: local, remoteAddr: remoteAddr}}
	return
}

type fakeConnMgr struct {
	mu   sync.Mutex
	tags map[peer.ID]map[string]int
}

func newFakeConnMgr() *fakeConnMgr {
	return &fakeConnMgr{tags: make(map[peer.ID]map[string]int)}
}

func (m *fakeConnMgr) TagPeer(p peer.ID, tag string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags[p] == nil {
		m.tags[p] = make(map[string]int)
	}
	m.tags[p][tag] = value
}

func (m *fakeConnMgr) UntagPeer(p peer.ID, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags[p], tag)
}

func (m *fakeConnMgr) valueOf(p peer.ID, tag string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tags[p][tag]
	return v, ok
}

type fakeHost struct {
	id          peer.ID
	addrs       []ma.Multiaddr
	connMgr     *fakeConnMgr
	newStreamFn func(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error)
}

func (h *fakeHost) ID() peer.ID           { return h.id }
func (h *fakeHost) Addrs() []ma.Multiaddr { return h.addrs }
func (h *fakeHost) Connect(ctx context.Context, p peer.ID) error { return nil }
func (h *fakeHost) NewStream(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error) {
	return h.newStreamFn(ctx, p, pids...)
}
func (h *fakeHost) SetStreamHandler(protocol.ID, func(Stream)) {}
func (h *fakeHost) RemoveStreamHandler(protocol.ID)            {}
func (h *fakeHost) ConnManager() tag.ConnManager               { return h.connMgr }

func newTestHost(t *testing.T) (*fakeHost, *fakeConnMgr) {
	t.Helper()
	cm := newFakeConnMgr()
	addr, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)
	return &fakeHost{
		id:      test.RandPeerIDFatal(t),
		addrs:   []ma.Multiaddr{addr},
		connMgr: cm,
	}, cm
}

type fakeMetrics struct {
	mu                sync.Mutex
	reservesAllowed   int
	reservesRefused   int
	connectionClosed  chan struct{}
	reservationClosed chan peer.ID
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		connectionClosed:  make(chan struct{}, 4),
		reservationClosed: make(chan peer.ID, 4),
	}
}

func (m *fakeMetrics) ReservationAllowed(p peer.ID, refreshed bool) {
	m.mu.Lock()
	m.reservesAllowed++
	m.mu.Unlock()
}
func (m *fakeMetrics) ReservationRefused(p peer.ID, status pb.Status) {
	m.mu.Lock()
	m.reservesRefused++
	m.mu.Unlock()
}
func (m *fakeMetrics) ReservationClosed(p peer.ID) { m.reservationClosed <- p }
func (m *fakeMetrics) ConnectionOpened(src, dst peer.ID) {}
func (m *fakeMetrics) ConnectionClosed(src, dst peer.ID, n int64) {
	m.connectionClosed <- struct{}{}
}
func (m *fakeMetrics) ConnectionRefused(src, dst peer.ID, status pb.Status) {}
func (m *fakeMetrics) BytesTransferred(n int)                              {}

func remoteAddr(t *testing.T) ma.Multiaddr {
	t.Helper()
	a, err := ma.NewMultiaddr("/ip4/10.0.0.1/tcp/1234")
	require.NoError(t, err)
	return a
}

func TestHappyReserve(t *testing.T) {
	h, cm := newTestHost(t)
	metrics := newFakeMetrics()
	svc, err := New(h, nil, WithResources(DefaultResources()), WithMetricsTracer(metrics))
	require.NoError(t, err)
	defer svc.Close()

	clientID := test.RandPeerIDFatal(t)
	local, remote := newFakeStreamPair(clientID, h.id, remoteAddr(t))
	go svc.handleStream(remote)

	req := &pb.HopMessage{Type: pb.HopMessage_RESERVE.Enum()}
	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(req))

	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_OK, resp.GetStatus())
	require.NotNil(t, resp.GetReservation())

	// Scenario: peer tagged.
	v, ok := cm.valueOf(clientID, DefaultResources().ReservationTagName)
	require.True(t, ok)
	require.Equal(t, DefaultResources().ReservationTagValue, v)

	require.Equal(t, 1, metrics.reservesAllowed)
}

func TestGaterDeniesReservation(t *testing.T) {
	h, _ := newTestHost(t)
	g := &gater.Gater{DenyInboundRelayReservation: func(peer.ID, ma.Multiaddr) bool { return true }}
	svc, err := New(h, nil, WithGater(g))
	require.NoError(t, err)
	defer svc.Close()

	local, remote := newFakeStreamPair(test.RandPeerIDFatal(t), h.id, remoteAddr(t))
	go svc.handleStream(remote)

	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(&pb.HopMessage{Type: pb.HopMessage_RESERVE.Enum()}))
	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_PERMISSION_DENIED, resp.GetStatus())
}

func TestCapacityExceededThenRefreshSucceeds(t *testing.T) {
	h, _ := newTestHost(t)
	res := DefaultResources()
	res.MaxReservations = 1
	svc, err := New(h, nil, WithResources(res))
	require.NoError(t, err)
	defer svc.Close()

	peerA := test.RandPeerIDFatal(t)
	peerB := test.RandPeerIDFatal(t)

	reserve := func(p peer.ID) pb.Status {
		local, remote := newFakeStreamPair(p, h.id, remoteAddr(t))
		go svc.handleStream(remote)
		require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(&pb.HopMessage{Type: pb.HopMessage_RESERVE.Enum()}))
		var resp pb.HopMessage
		require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
		return resp.GetStatus()
	}

	require.Equal(t, pb.Status_OK, reserve(peerA))
	require.Equal(t, pb.Status_RESERVATION_REFUSED, reserve(peerB))
	// Refresh under pressure still succeeds for the existing holder.
	require.Equal(t, pb.Status_OK, reserve(peerA))
}

func TestConnectMalformedPeer(t *testing.T) {
	h, _ := newTestHost(t)
	svc, err := New(h, nil)
	require.NoError(t, err)
	defer svc.Close()

	local, remote := newFakeStreamPair(test.RandPeerIDFatal(t), h.id, remoteAddr(t))
	go svc.handleStream(remote)

	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(&pb.HopMessage{Type: pb.HopMessage_CONNECT.Enum()}))
	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_MALFORMED_MESSAGE, resp.GetStatus())
}

func TestConnectNoReservation(t *testing.T) {
	h, _ := newTestHost(t)
	svc, err := New(h, nil)
	require.NoError(t, err)
	defer svc.Close()

	dstID := test.RandPeerIDFatal(t)
	local, remote := newFakeStreamPair(test.RandPeerIDFatal(t), h.id, remoteAddr(t))
	go svc.handleStream(remote)

	req := &pb.HopMessage{Type: pb.HopMessage_CONNECT.Enum(), Peer: &pb.Peer{Id: []byte(dstID)}}
	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(req))
	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_NO_RESERVATION, resp.GetStatus())
}

func TestConnectHappyPathSplicesBothDirections(t *testing.T) {
	h, _ := newTestHost(t)
	metrics := newFakeMetrics()
	svc, err := New(h, nil, WithMetricsTracer(metrics))
	require.NoError(t, err)
	defer svc.Close()

	clientID := test.RandPeerIDFatal(t)
	dstID := test.RandPeerIDFatal(t)
	_, _, err = svc.store.Reserve(dstID, nil, reservation.Limit{})
	require.NoError(t, err)

	stopNear, stopFar := newFakeStreamPair(h.id, dstID, remoteAddr(t))
	h.newStreamFn = func(ctx context.Context, p peer.ID, pids ...protocol.ID) (Stream, error) {
		return stopNear, nil
	}
	go func() {
		var req pb.StopMessage
		if err := wire.NewDelimitedReader(stopFar, wire.MaxMessageSize).ReadMsg(&req); err != nil {
			return
		}
		resp := &pb.StopMessage{Type: pb.StopMessage_STATUS.Enum(), Status: pb.Status_OK.Enum()}
		_ = wire.NewDelimitedWriter(stopFar).WriteMsg(resp)
	}()

	local, remote := newFakeStreamPair(clientID, h.id, remoteAddr(t))
	go svc.handleStream(remote)

	req := &pb.HopMessage{Type: pb.HopMessage_CONNECT.Enum(), Peer: &pb.Peer{Id: []byte(dstID)}}
	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(req))

	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_OK, resp.GetStatus())

	_, err = local.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(stopFar, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	_, err = stopFar.Write([]byte("pong"))
	require.NoError(t, err)
	_, err = io.ReadFull(local, buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf))

	local.CloseWrite()
	stopFar.CloseWrite()

	select {
	case <-metrics.connectionClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("splice never reported connection closed")
	}
}

// TestReservationExpiryUntagsAndReportsClosed uses a real clock rather than
// a mock one: the store's background sweep runs on a fixed 1s ticker
// (reservation.gcInterval is not configurable), and driving that ticker
// deterministically through a mock clock from outside the reservation
// package is racy. A short real TTL keeps the wait bounded instead.
func TestReservationExpiryUntagsAndReportsClosed(t *testing.T) {
	h, cm := newTestHost(t)
	metrics := newFakeMetrics()
	res := DefaultResources()
	res.ReservationTTL = 50 * time.Millisecond
	svc, err := New(h, nil, WithResources(res), WithMetricsTracer(metrics))
	require.NoError(t, err)
	defer svc.Close()

	p := test.RandPeerIDFatal(t)
	_, _, err = svc.store.Reserve(p, nil, reservation.Limit{})
	require.NoError(t, err)
	svc.tagger.Tag(p, res.ReservationTagValue)
	_, ok := cm.valueOf(p, res.ReservationTagName)
	require.True(t, ok)

	select {
	case closed := <-metrics.reservationClosed:
		require.Equal(t, p, closed)
	case <-time.After(5 * time.Second):
		t.Fatal("expiry never reported ReservationClosed")
	}

	_, ok = cm.valueOf(p, res.ReservationTagName)
	require.False(t, ok)
}

func TestApplyConnectionLimitsFalseAdvertisesUnbounded(t *testing.T) {
	h, _ := newTestHost(t)
	res := DefaultResources()
	res.ApplyConnectionLimits = false
	svc, err := New(h, nil, WithResources(res))
	require.NoError(t, err)
	defer svc.Close()

	local, remote := newFakeStreamPair(test.RandPeerIDFatal(t), h.id, remoteAddr(t))
	go svc.handleStream(remote)

	require.NoError(t, wire.NewDelimitedWriter(local).WriteMsg(&pb.HopMessage{Type: pb.HopMessage_RESERVE.Enum()}))
	var resp pb.HopMessage
	require.NoError(t, wire.NewDelimitedReader(local, wire.MaxMessageSize).ReadMsg(&resp))
	require.Equal(t, pb.Status_OK, resp.GetStatus())
	require.Equal(t, uint64(0), resp.GetLimit().GetData())
	require.Equal(t, uint32(0), resp.GetLimit().GetDuration())
}

func TestCloseResetsInFlightStream(t *testing.T) {
	h, _ := newTestHost(t)
	svc, err := New(h, nil)
	require.NoError(t, err)

	local, remote := newFakeStreamPair(test.RandPeerIDFatal(t), h.id, remoteAddr(t))
	started := make(chan struct{})
	go func() {
		close(started)
		svc.handleStream(remote)
	}()
	<-started
	// give handleStream a moment to register remote before Close races it.
	require.Eventually(t, func() bool {
		_, tracked := svc.streams.Load(remote)
		return tracked
	}, time.Second, time.Millisecond)

	svc.Close()

	buf := make([]byte, 1)
	_, err = local.Read(buf)
	require.Error(t, err)
}
