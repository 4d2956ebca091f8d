// Package reservation implements the bounded reservation store (component
// B): an ordered PeerId -> Reservation mapping with a capacity cap, TTL
// expiry, and same-peer refresh that bypasses the cap.
package reservation

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-libp2p/core/peer"
)

var log = logging.Logger("relay/reservation")

// Defaults, per the configuration table.
const (
	DefaultMaxReservations = 15
	DefaultTTL             = 2 * time.Hour
	gcInterval             = time.Second
)

// ErrResourceLimitExceeded is returned by Reserve when the store is full
// and the requesting peer has no existing entry to refresh.
var ErrResourceLimitExceeded = errors.New("reservation: resource limit exceeded")

// Limit is the per-relayed-connection cap advertised with a reservation.
// Zero on either field means unbounded on that axis.
type Limit struct {
	Data     uint64
	Duration time.Duration
}

// Reservation is one peer's relay slot.
type Reservation struct {
	Peer      peer.ID
	Expire    time.Time
	Addrs     []ma.Multiaddr
	Limit     Limit
	CreatedAt time.Time
}

// Store is a capacity-bounded, insertion-ordered PeerId -> Reservation
// map. All mutations and reads serialize on a single mutex; callers must
// perform any blocking external call (gater checks, tagging) outside of
// Reserve/Get/Remove and reapply the result afterward -- the store itself
// never calls out while holding its lock (the WithOnExpire callback runs
// after the lock is released).
type Store struct {
	mu       sync.Mutex
	clock    clock.Clock
	max      int
	ttl      time.Duration
	order    []peer.ID
	rsvp     map[peer.ID]*Reservation
	onExpire func(peer.ID)

	closed   bool
	stopGC   chan struct{}
	gcClosed sync.WaitGroup
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithClock overrides the clock used for "now" and the background expiry
// ticker; tests use this for deterministic TTL behavior.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithOnExpire installs a callback invoked, outside the store's lock, once
// per peer whose reservation is dropped by the background expiry sweep.
// relay.Service uses this to untag the peer and report ReservationClosed to
// its metrics tracer. It is not called for an explicit Remove.
func WithOnExpire(fn func(peer.ID)) Option {
	return func(s *Store) { s.onExpire = fn }
}

// New constructs a Store with the given capacity and TTL, starting its
// background expiry loop immediately.
func New(max int, ttl time.Duration, opts ...Option) *Store {
	if max <= 0 {
		max = DefaultMaxReservations
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		clock:  clock.New(),
		max:    max,
		ttl:    ttl,
		rsvp:   make(map[peer.ID]*Reservation),
		stopGC: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gcClosed.Add(1)
	go s.gcLoop()
	return s
}

// Reserve admits or refreshes a reservation for p. A peer with an existing
// entry is always refreshed in place (its position in insertion order is
// kept) regardless of how full the store is; a brand new peer is admitted
// only while size < max, otherwise ErrResourceLimitExceeded is returned --
// the store never evicts another peer to make room for a new one.
func (s *Store) Reserve(p peer.ID, addrs []ma.Multiaddr, limit Limit) (rsvp *Reservation, refreshed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	expire := now.Add(s.ttl)

	if existing, ok := s.rsvp[p]; ok {
		existing.Expire = expire
		existing.Addrs = addrs
		existing.Limit = limit
		return existing, true, nil
	}

	if len(s.rsvp) >= s.max {
		return nil, false, ErrResourceLimitExceeded
	}

	r := &Reservation{
		Peer:      p,
		Expire:    expire,
		Addrs:     addrs,
		Limit:     limit,
		CreatedAt: now,
	}
	s.rsvp[p] = r
	s.order = append(s.order, p)
	return r, false, nil
}

// Get returns the reservation for p iff it is present and not expired.
func (s *Store) Get(p peer.ID) (*Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rsvp[p]
	if !ok {
		return nil, false
	}
	if !r.Expire.After(s.clock.Now()) {
		return nil, false
	}
	return r, true
}

// Remove explicitly drops p's reservation, if any.
func (s *Store) Remove(p peer.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(p)
}

func (s *Store) removeLocked(p peer.ID) {
	if _, ok := s.rsvp[p]; !ok {
		return
	}
	delete(s.rsvp, p)
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the current number of live (not necessarily unexpired)
// entries; it is exposed mainly for tests asserting the capacity invariant.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rsvp)
}

func (s *Store) gcLoop() {
	defer s.gcClosed.Done()
	ticker := s.clock.Ticker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.expireOnce()
		case <-s.stopGC:
			return
		}
	}
}

func (s *Store) expireOnce() {
	s.mu.Lock()
	now := s.clock.Now()
	var expired []peer.ID
	for _, p := range append([]peer.ID(nil), s.order...) {
		r, ok := s.rsvp[p]
		if !ok {
			continue
		}
		if !r.Expire.After(now) {
			s.removeLocked(p)
			expired = append(expired, p)
			log.Debugf("expired reservation for %s", p)
		}
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	if onExpire != nil {
		for _, p := range expired {
			onExpire(p)
		}
	}
}

// Close stops the background expiry loop and drains the store. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.rsvp = make(map[peer.ID]*Reservation)
	s.order = nil
	s.mu.Unlock()

	close(s.stopGC)
	s.gcClosed.Wait()
}
