package connection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNoEndpoints = errors.New("no endpoints to dial")
	ErrSocketEOF   = errors.New("socket closed by server")
)

// Ack code the platform uses for a revoked or expired feed token. Any other
// non-zero code is retried with normal backoff.
const CodeTokenRevoked = -101

// AuthError is a login rejection reported in the ack frame.
type AuthError struct {
	Code int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login rejected: code %d", e.Code)
}

// Fatal reports whether the rejection is unrecoverable and retrying is
// pointless.
func (e *AuthError) Fatal() bool {
	return e.Code == CodeTokenRevoked
}

// Params are the inputs for one connection attempt: candidate endpoints in
// failover order, the room to join, and a short-lived feed token.
type Params struct {
	Endpoints []string // full wss URLs, tried in order
	RoomID    uint64
	UID       uint64 // 0 = anonymous viewer
	Key       string // feed token bound to the room
}

// ParamsProvider resolves connection parameters. It is called before every
// attempt so tokens are always fresh; the platform's "resolve chat server"
// API sits behind this boundary.
type ParamsProvider interface {
	Resolve(ctx context.Context) (Params, error)
}

// StaticProvider returns the same parameters for every attempt. Useful for
// tests and for tokens with a long validity window.
type StaticProvider struct {
	P Params
}

func (p StaticProvider) Resolve(context.Context) (Params, error) {
	return p.P, nil
}

// State is the supervisor's connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateBackoff
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a lifecycle observation published on the supervisor's status
// channel. Status delivery is lossy: a slow reader drops transitions rather
// than stalling the feed.
type Status struct {
	State  State
	Epoch  string // UUID of the session the observation belongs to
	Online uint32 // latest online count, Active states only
	Err    error  // failure behind a Backoff or Closed transition
}

// Config tunes the supervisor.
type Config struct {
	EventBuffer        int           // output channel capacity
	HeartbeatInterval  time.Duration // client heartbeat period
	HandshakeTimeout   time.Duration // dial + login ack deadline
	ReconnectBaseDelay time.Duration // first backoff delay
	ReconnectMaxDelay  time.Duration // backoff ceiling
	StableReset        time.Duration // continuous Active time that forgives prior failures
}

// DefaultConfig returns the delays the platform's web client uses.
func DefaultConfig() Config {
	return Config{
		EventBuffer:        64,
		HeartbeatInterval:  30 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		ReconnectBaseDelay: 10 * time.Second,
		ReconnectMaxDelay:  300 * time.Second,
		StableReset:        30 * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.EventBuffer == 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if c.StableReset == 0 {
		c.StableReset = def.StableReset
	}
}

// retryPolicy computes backoff delays: geometric from base, capped at max.
// Instance data, never shared across supervisors.
type retryPolicy struct {
	base        time.Duration
	max         time.Duration
	stableAfter time.Duration
	current     time.Duration
}

// next returns the delay before the next attempt, escalating on each
// consecutive failure.
func (r *retryPolicy) next() time.Duration {
	if r.current == 0 {
		r.current = r.base
	} else {
		r.current *= 2
	}
	if r.current > r.max {
		r.current = r.max
	}
	return r.current
}

// observeActive forgives prior escalation once a session has stayed healthy
// long enough.
func (r *retryPolicy) observeActive(d time.Duration) {
	if d >= r.stableAfter {
		r.current = 0
	}
}
