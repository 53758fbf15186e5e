// Package backoff computes reconnect delays.
package backoff

import (
	"errors"
	"math/rand/v2"
	"time"
)

// ErrReconnectRequested marks a disconnect the server asked for. Such a
// disconnect is not a failure of the remote end, so only jitter is applied.
var ErrReconnectRequested = errors.New("server requested reconnect")

// Policy is exponential backoff with bounded jitter. The zero value is not
// useful; use Default or fill every field.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// Default mirrors the session defaults in the configuration.
func Default() Policy {
	return Policy{
		Base:   time.Second,
		Max:    time.Minute,
		Jitter: 500 * time.Millisecond,
	}
}

// BaseDelay is the pre-jitter delay for the given attempt (1-based):
// min(Max, Base*2^(attempt-1)). Attempts below 1 are treated as 1.
func (p Policy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.Base
	for i := 1; i < attempt; i++ {
		if d >= p.Max || d > p.Max/2 {
			return p.Max
		}
		d *= 2
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Delay returns how long to wait before the given reconnect attempt.
func (p Policy) Delay(attempt int, cause error) time.Duration {
	if errors.Is(cause, ErrReconnectRequested) {
		return p.jitter()
	}
	return p.BaseDelay(attempt) + p.jitter()
}

func (p Policy) jitter() time.Duration {
	if p.Jitter <= 0 {
		return 0
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return time.Duration(r() * float64(p.Jitter))
}
