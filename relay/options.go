package relay

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/circuit-relay/hop/gater"
	"github.com/circuit-relay/hop/reservation"
)

// Resources is the configuration table governing one relay instance's
// admission and relaying limits.
type Resources struct {
	MaxReservations       int
	ReservationTTL        time.Duration
	DefaultDataLimit      uint64
	DefaultDurationLimit  time.Duration
	HandshakeTimeout      time.Duration
	ApplyConnectionLimits bool
	ReservationTagName    string
	ReservationTagValue   int
}

// effectiveLimit returns the per-relayed-connection cap to advertise:
// DefaultDataLimit/DefaultDurationLimit normally, or {0,0} (unbounded) when
// ApplyConnectionLimits is false, per the configuration table's "If false,
// advertise {0,0}" rule.
func (r Resources) effectiveLimit() (data uint64, duration time.Duration) {
	if !r.ApplyConnectionLimits {
		return 0, 0
	}
	return r.DefaultDataLimit, r.DefaultDurationLimit
}

// DefaultResources matches the configuration table's defaults.
func DefaultResources() Resources {
	return Resources{
		MaxReservations:       reservation.DefaultMaxReservations,
		ReservationTTL:        reservation.DefaultTTL,
		DefaultDataLimit:      131072,
		DefaultDurationLimit:  120 * time.Second,
		HandshakeTimeout:      30 * time.Second,
		ApplyConnectionLimits: true,
		ReservationTagName:    "relay-v2-hop",
		ReservationTagValue:   2,
	}
}

// Option configures a Service at construction time.
type Option func(*Service) error

// WithResources overrides the configuration table wholesale.
func WithResources(r Resources) Option {
	return func(s *Service) error {
		s.resources = r
		return nil
	}
}

// WithGater installs the authorization hooks consulted on RESERVE and
// CONNECT. A nil Gater (the default) permits everything.
func WithGater(g *gater.Gater) Option {
	return func(s *Service) error {
		s.gater = g
		return nil
	}
}

// WithClock overrides the clock used by the reservation store, primarily
// for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(s *Service) error {
		s.clock = c
		return nil
	}
}

// WithMetricsTracer installs a MetricsTracer; nil (the default) disables
// metrics entirely rather than recording into a no-op implementation.
func WithMetricsTracer(mt MetricsTracer) Option {
	return func(s *Service) error {
		s.metrics = mt
		return nil
	}
}
