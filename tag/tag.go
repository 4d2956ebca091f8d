// Package tag implements the peer tagger (component G): a best-effort,
// idempotent call into the host's connection manager so relay-source peers
// are not evicted while their reservation is live.
package tag

import (
	logging "github.com/ipfs/go-log/v2"

	"github.com/libp2p/go-libp2p/core/peer"
)

var log = logging.Logger("relay/tag")

// ConnManager is the narrow collaborator this package needs -- the
// connection-manager tagging operations, not the full host. It is
// satisfied by *go-libp2p's* connmgr.ConnManager through a thin adapter
// (see relay.Host), or by a fake in tests.
type ConnManager interface {
	TagPeer(p peer.ID, tag string, value int)
	UntagPeer(p peer.ID, tag string)
}

// Tagger calls ConnManager.TagPeer/UntagPeer, recovering and logging any
// panic the ConnManager implementation raises.
// There is nothing to retry: the operation is fire-and-forget by contract
// (spec: "tagging must not affect the RESERVE reply").
type Tagger struct {
	cm  ConnManager
	tag string
}

func New(cm ConnManager, tagName string) *Tagger {
	return &Tagger{cm: cm, tag: tagName}
}

// Tag marks p with value, best-effort. There is no separate TTL parameter:
// the tag stays until the caller calls Untag, which relay.Service does from
// the reservation store's expiry hook.
func (t *Tagger) Tag(p peer.ID, value int) {
	if t == nil || t.cm == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("tagging peer %s failed: %v", p, r)
		}
	}()
	t.cm.TagPeer(p, t.tag, value)
}

// Untag best-effort removes the tag placed by Tag.
func (t *Tagger) Untag(p peer.ID) {
	if t == nil || t.cm == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("untagging peer %s failed: %v", p, r)
		}
	}()
	t.cm.UntagPeer(p, t.tag)
}
