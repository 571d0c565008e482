package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/khaledhikmat/ws-go/service/config"
)

func defaultCooldown() *Cooldown {
	return NewCooldown(config.CooldownParameters{Initial: 4 * time.Second, Subsequent: 12 * time.Second})
}

func TestCooldown_AllowedBeforeAnyDetection(t *testing.T) {
	c := defaultCooldown()

	assert.Equal(t, AwaitingFirst, c.State())
	assert.True(t, c.Allowed(at(0)))
	assert.True(t, c.Allowed(at(0.001)))
	_, ok := c.LastDetection()
	assert.False(t, ok)
}

func TestCooldown_ArmedAfterFirstAcceptance(t *testing.T) {
	c := defaultCooldown()
	c.OnAccepted(at(5))

	assert.Equal(t, Armed, c.State())
	last, ok := c.LastDetection()
	assert.True(t, ok)
	assert.Equal(t, at(5), last)

	tests := []struct {
		now     float64
		allowed bool
	}{
		{now: 10, allowed: false},
		{now: 9.5, allowed: false},
		{now: 17, allowed: false}, // exactly 12s is not enough
		{now: 17.001, allowed: true},
		{now: 30, allowed: true},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.allowed, c.Allowed(at(tc.now)), "now=%v", tc.now)
	}
}

func TestCooldown_ArmedIsTerminal(t *testing.T) {
	c := defaultCooldown()
	c.OnAccepted(at(5))
	c.OnAccepted(at(20))

	assert.Equal(t, Armed, c.State())
	assert.False(t, c.Allowed(at(31)))
	assert.True(t, c.Allowed(at(32.5)))
}

func TestCooldown_AcceptancesRespectInterval(t *testing.T) {
	// Drive the scheduler with a dense stream of candidate times and accept whenever
	// allowed. Every accepted pair must be separated by more than the interval of the
	// state the scheduler was in at the earlier acceptance.
	c := defaultCooldown()
	var accepted []time.Time
	var states []CooldownState

	for ms := 0; ms <= 120_000; ms += 250 {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		if c.Allowed(now) {
			states = append(states, c.State())
			c.OnAccepted(now)
			accepted = append(accepted, now)
		}
	}

	assert.Greater(t, len(accepted), 2)
	for i := 1; i < len(accepted); i++ {
		gap := accepted[i].Sub(accepted[i-1])
		if states[i-1] == AwaitingFirst {
			assert.Greater(t, gap, 4*time.Second)
		}
		assert.Greater(t, gap, 12*time.Second)
	}
}
