package tag

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/test"
)

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

func TestTagAndUntag(t *testing.T) {
	cm := newFakeConnMgr()
	tagger := New(cm, "relay-v2-hop")

	p := test.RandPeerIDFatal(t)
	tagger.Tag(p, 5)
	require.Equal(t, 5, cm.tags[p]["relay-v2-hop"])

	tagger.Untag(p)
	_, ok := cm.tags[p]["relay-v2-hop"]
	require.False(t, ok)
}

func TestNilTaggerIsNoOp(t *testing.T) {
	var tagger *Tagger
	p := test.RandPeerIDFatal(t)
	require.NotPanics(t, func() {
		tagger.Tag(p, 1)
		tagger.Untag(p)
	})
}

func TestTaggerWithNilConnManagerIsNoOp(t *testing.T) {
	tagger := New(nil, "relay-v2-hop")
	p := test.RandPeerIDFatal(t)
	require.NotPanics(t, func() {
		tagger.Tag(p, 1)
		tagger.Untag(p)
	})
}
