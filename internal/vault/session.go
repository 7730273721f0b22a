package vault

import (
	"time"

	"github.com/chippr-robotics/sigil/internal/errs"
	"github.com/chippr-robotics/sigil/internal/primitives"
)

const (
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultAbsoluteMax  = time.Hour
	sessionWarningWindow = 60 * time.Second
)

// Session is the memory-only holder of the decrypted master key
// material (spec §4.6). It expires on idle timeout or absolute max
// duration, whichever comes first; on expiry K must be zeroized. The
// warning-period flag (supplemented feature, from
// sigil-mother-tui/src/auth/session.rs) fires in the final 60s before
// idle-timeout, for callers that want to warn an operator before a
// session drops mid-ceremony.
type Session struct {
	key          [32]byte
	createdAt    time.Time
	lastActivity time.Time
	idleTimeout  time.Duration
	absoluteMax  time.Duration
	closed       bool
}

// NewSession starts a session holding key, with the default timeouts.
func NewSession(key [32]byte, now time.Time) *Session {
	return &Session{
		key:          key,
		createdAt:    now,
		lastActivity: now,
		idleTimeout:  DefaultIdleTimeout,
		absoluteMax:  DefaultAbsoluteMax,
	}
}

func (s *Session) WithTimeouts(idle, absolute time.Duration) *Session {
	s.idleTimeout = idle
	s.absoluteMax = absolute
	return s
}

// Touch records activity, resetting the idle clock.
func (s *Session) Touch(now time.Time) {
	s.lastActivity = now
}

// IsExpired reports idle-timeout or absolute-max expiry, whichever is sooner.
func (s *Session) IsExpired(now time.Time) bool {
	if s.closed {
		return true
	}
	if now.Sub(s.lastActivity) > s.idleTimeout {
		return true
	}
	if now.Sub(s.createdAt) > s.absoluteMax {
		return true
	}
	return false
}

// IsWarningPeriod reports whether the session is within the last 60s of
// its idle timeout (and not already expired).
func (s *Session) IsWarningPeriod(now time.Time) bool {
	if s.IsExpired(now) {
		return false
	}
	elapsed := now.Sub(s.lastActivity)
	cutoff := s.idleTimeout - sessionWarningWindow
	if cutoff < 0 {
		cutoff = 0
	}
	return elapsed > cutoff
}

// RemainingSeconds returns seconds until idle-timeout expiry.
func (s *Session) RemainingSeconds(now time.Time) int64 {
	remaining := s.idleTimeout - now.Sub(s.lastActivity)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// ValidateAndTouch is the gate every secret-touching operation must call
// (spec §4.6): it fails if the session has expired, and otherwise
// refreshes the idle clock and returns the held key.
func (s *Session) ValidateAndTouch(now time.Time) ([32]byte, error) {
	if s.IsExpired(now) {
		return [32]byte{}, errs.New(errs.KindSessionExpired, "session expired")
	}
	s.Touch(now)
	return s.key, nil
}

// Close zeroizes the held key material and marks the session unusable.
// Callers should defer Close on every session they create.
func (s *Session) Close() {
	primitives.Zero(s.key[:])
	s.closed = true
}
