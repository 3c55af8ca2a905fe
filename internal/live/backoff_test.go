// ABOUTME: Tests for reconnect delay computation
// ABOUTME: Fixed delays stay constant; exponential delays grow and cap

package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pethome/pethome-inbox/internal/config"
)

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff(5 * time.Second)
	for attempt := range 10 {
		assert.Equal(t, 5*time.Second, b.Delay(attempt))
	}
	assert.Equal(t, DefaultDelay, Backoff{}.Delay(3))
}

func TestExponentialBackoff(t *testing.T) {
	b := Backoff{Exponential: true, Base: time.Second, Max: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(40))
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	b := Backoff{Exponential: true, Base: time.Second, Max: 8 * time.Second, Multiplier: 2, Jitter: true}
	for range 100 {
		d := b.Delay(3)
		assert.GreaterOrEqual(t, d, time.Duration(float64(8*time.Second)*0.89))
		assert.LessOrEqual(t, d, time.Duration(float64(8*time.Second)*1.11))
	}
}

func TestBackoffFromConfig(t *testing.T) {
	fixed := BackoffFromConfig(config.LiveConfig{Backoff: config.BackoffFixed, ReconnectDelay: 3 * time.Second})
	assert.False(t, fixed.Exponential)
	assert.Equal(t, 3*time.Second, fixed.Delay(5))

	exp := BackoffFromConfig(config.LiveConfig{
		Backoff:        config.BackoffExponential,
		ReconnectDelay: time.Second,
		MaxDelay:       time.Minute,
	})
	assert.True(t, exp.Exponential)
	assert.Equal(t, time.Minute, exp.Max)
}

func TestExponentialBackoffWithoutMaxStaysBounded(t *testing.T) {
	b := Backoff{Exponential: true, Base: time.Second, Multiplier: 2, Jitter: true}
	maxDelay := float64(config.DefaultMaxDelay)
	for _, attempt := range []int{0, 10, 64, 1024, 5000} {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Second, "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Duration(maxDelay*1.11), "attempt %d", attempt)
	}
}
