package queue

import (
	"math/rand/v2"
	"sync"
	"time"
)

// JitterMode способ рандомизации задержки
type JitterMode string

const (
	// JitterMultiplicative multiplies the delay by a factor in [0.85, 1.15]
	JitterMultiplicative JitterMode = "multiplicative"
	// JitterAdditive adds 0-30% of the delay
	JitterAdditive JitterMode = "additive"
	// JitterNone disables randomization
	JitterNone JitterMode = "none"
)

const (
	jitterLow      = 0.85
	jitterHigh     = 1.15
	jitterAdditive = 0.30
)

// Backoff computes retry delays: min(base*2^attempt, max) with jitter.
// The result never exceeds max and never drops below the nominal delay of
// the previous attempt, so consecutive delays are non-decreasing in base value.
type Backoff struct {
	rnd  *rand.Rand
	mode JitterMode
	base time.Duration
	max  time.Duration
	mu   sync.Mutex
}

// NewBackoff creates a backoff. rnd may be nil for a time-seeded source.
func NewBackoff(base, max time.Duration, mode JitterMode, rnd *rand.Rand) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	if mode == "" {
		mode = JitterMultiplicative
	}
	return &Backoff{rnd: rnd, mode: mode, base: base, max: max}
}

// Nominal returns min(base*2^attempt, max) without jitter
func (b *Backoff) Nominal(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := b.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.max || d <= 0 {
			return b.max
		}
	}
	if d > b.max {
		return b.max
	}
	return d
}

// Delay returns the jittered delay for the given zero-based attempt
func (b *Backoff) Delay(attempt int) time.Duration {
	nominal := b.Nominal(attempt)

	var d time.Duration
	switch b.mode {
	case JitterNone:
		d = nominal
	case JitterAdditive:
		d = nominal + time.Duration(float64(nominal)*jitterAdditive*b.float())
	default:
		factor := jitterLow + (jitterHigh-jitterLow)*b.float()
		d = time.Duration(float64(nominal) * factor)
	}

	if attempt > 0 {
		if floor := b.Nominal(attempt - 1); d < floor {
			d = floor
		}
	}
	if d > b.max {
		d = b.max
	}
	return d
}

func (b *Backoff) float() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rnd.Float64()
}
