// ABOUTME: Reconnect delay policy for the live channel
// ABOUTME: Fixed by default; exponential with jitter and a ceiling when configured

package live

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/pethome/pethome-inbox/internal/config"
)

// DefaultDelay is the fixed reconnect delay.
const DefaultDelay = 5 * time.Second

// Backoff computes the wait before reconnect attempt n (zero-based).
type Backoff struct {
	// Exponential switches from a fixed delay to Base * Multiplier^n.
	Exponential bool
	Base        time.Duration
	// Max caps exponential delays; zero means config.DefaultMaxDelay.
	Max        time.Duration
	Multiplier float64
	// Jitter adds up to ±10% to exponential delays.
	Jitter bool
}

// FixedBackoff waits d between every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{Base: d}
}

// BackoffFromConfig builds the policy described by cfg.
func BackoffFromConfig(cfg config.LiveConfig) Backoff {
	if cfg.Backoff == config.BackoffExponential {
		return Backoff{
			Exponential: true,
			Base:        cfg.ReconnectDelay,
			Max:         cfg.MaxDelay,
			Multiplier:  2,
			Jitter:      true,
		}
	}
	return FixedBackoff(cfg.ReconnectDelay)
}

// Delay returns the wait before attempt n.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultDelay
	}
	if !b.Exponential {
		return base
	}

	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = config.DefaultMaxDelay
	}
	ceiling = max(ceiling, base)

	// Pow overflows to +Inf for large attempts; the cap catches it
	delay := float64(base) * math.Pow(mult, float64(attempt))
	if delay > float64(ceiling) {
		delay = float64(ceiling)
	}

	if b.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64()*2 - 1) * jitterRange
		if delay < float64(base) {
			delay = float64(base)
		}
	}
	return time.Duration(delay)
}
