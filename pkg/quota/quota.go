// Package quota tracks per-identity request counts over a rolling window.
//
// A Record is created lazily on the first request from an identity and
// reset whenever a full window has elapsed since the window started. The
// per-record window check is the authoritative expiry rule; the memory
// backend's sweeper only reclaims memory.
package quota

import (
	"context"
	"time"
)

// DefaultWindow is the quota window applied when none is configured.
const DefaultWindow = 24 * time.Hour

// Record is the per-identity counter state.
type Record struct {
	Identity    string
	Count       int64
	WindowStart time.Time
}

// Expired reports whether the record's window has fully elapsed at now.
func (r Record) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(r.WindowStart) > window
}

// Store is a key-value counter with a last-write timestamp per identity.
//
// Get returns the effective record with the window-reset rule already
// applied: an expired record reads as count 0. The boolean reports whether
// a live (non-expired) record exists.
//
// Increment applies the window-reset rule, adds one, writes back and
// returns the post-increment record. Implementations must not lose updates
// under concurrent increments for the same identity.
type Store interface {
	Get(ctx context.Context, identity string) (Record, bool, error)
	Increment(ctx context.Context, identity string) (Record, error)
}

// Policy maps identity kind to a request ceiling. It is stateless.
type Policy struct {
	AuthenticatedLimit int64
	AnonymousLimit     int64
	Window             time.Duration
}

// DefaultPolicy returns the production limits: 20 requests per window for
// authenticated callers, 5 for anonymous ones, over a 24 hour window.
func DefaultPolicy() Policy {
	return Policy{
		AuthenticatedLimit: 20,
		AnonymousLimit:     5,
		Window:             DefaultWindow,
	}
}

// LimitFor returns the ceiling for the given identity kind.
func (p Policy) LimitFor(authenticated bool) int64 {
	if authenticated {
		return p.AuthenticatedLimit
	}
	return p.AnonymousLimit
}
