// Package backoff computes retry delays shared by the link and session guards.
//
// The schedule doubles from a base delay for the first Threshold attempts,
// adding a bounded random jitter, and then saturates at a fixed ceiling:
//
//	attempt n <= Threshold: Base<<n + jitter, jitter in [0, JitterMax)
//	attempt n >  Threshold: Ceiling
//
// With the default policy that is 200-250ms after the first failure,
// 3.2-3.25s after the fifth and a flat 10s afterwards.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Jitter supplies the random component of a delay. *rand.Rand satisfies it.
type Jitter interface {
	Int64N(n int64) int64
}

// Policy describes a saturating exponential backoff schedule.
type Policy struct {
	// Base is the delay unit doubled per attempt. It is also the delay used
	// right after a successful attach.
	Base time.Duration

	// JitterMax bounds the random component (exclusive).
	JitterMax time.Duration

	// Ceiling is the flat delay used once Threshold is exceeded.
	Ceiling time.Duration

	// Threshold is the last attempt count that still doubles.
	Threshold int
}

// Default is the schedule used by both connection guards.
var Default = Policy{
	Base:      100 * time.Millisecond,
	JitterMax: 50 * time.Millisecond,
	Ceiling:   10 * time.Second,
	Threshold: 5,
}

// Delay returns the wait before the next attempt after attempt consecutive
// failures. A nil jitter source means no jitter.
func (p Policy) Delay(attempt int, j Jitter) time.Duration {
	if attempt > p.Threshold {
		return p.Ceiling
	}
	if attempt < 0 {
		attempt = 0
	}

	d := p.Base << uint(attempt)
	if j != nil && p.JitterMax > 0 {
		d += time.Duration(j.Int64N(int64(p.JitterMax)))
	}
	return d
}

// NewJitter returns a Jitter seeded from the runtime's random source.
func NewJitter() Jitter {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
