// Package clockid supplies the clock and id sources every time- or
// id-dependent component in this module takes as a dependency, so that
// tests can pin both without touching wall-clock time or randomness.
package clockid

import (
	"time"

	"github.com/google/uuid"
)

// Clock returns the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// IDSource mints opaque unique identifiers (Sub, Session, jti, ...).
type IDSource interface {
	NewID() string
}

// System is the real clock, backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// UUIDSource mints RFC 4122 UUIDs via google/uuid.
type UUIDSource struct{}

func (UUIDSource) NewID() string { return uuid.NewString() }

// Fixed is a Clock that always returns the same instant. Useful for
// golden-value tests where token exp/iat must be deterministic.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// Sequence is an IDSource that returns ids from a fixed list in order,
// then repeats the last one. Useful for deterministic tests.
type Sequence struct {
	IDs []string
	n   int
}

func (s *Sequence) NewID() string {
	if len(s.IDs) == 0 {
		return ""
	}
	if s.n >= len(s.IDs) {
		return s.IDs[len(s.IDs)-1]
	}
	id := s.IDs[s.n]
	s.n++
	return id
}
