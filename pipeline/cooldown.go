package pipeline

import (
	"time"

	"github.com/khaledhikmat/ws-go/service/config"
)

type CooldownState int

const (
	AwaitingFirst CooldownState = iota
	Armed
)

func (s CooldownState) String() string {
	if s == Armed {
		return "armed"
	}
	return "awaiting_first"
}

// Cooldown enforces the quiet interval between classification attempts. The interval
// grows once the first item has been accepted so an item being carried away is not
// counted twice.
type Cooldown struct {
	initial    time.Duration
	subsequent time.Duration
	state      CooldownState
	last       time.Time
	detected   bool
}

func NewCooldown(params config.CooldownParameters) *Cooldown {
	return &Cooldown{
		initial:    params.Initial,
		subsequent: params.Subsequent,
		state:      AwaitingFirst,
	}
}

func (c *Cooldown) interval() time.Duration {
	if c.state == Armed {
		return c.subsequent
	}
	return c.initial
}

// Allowed is true before any accepted detection and afterwards only once strictly
// more than the current interval has passed since the last one.
func (c *Cooldown) Allowed(now time.Time) bool {
	if !c.detected {
		return true
	}
	return now.Sub(c.last) > c.interval()
}

func (c *Cooldown) OnAccepted(now time.Time) {
	c.last = now
	c.detected = true
	c.state = Armed
}

func (c *Cooldown) State() CooldownState {
	return c.state
}

// LastDetection returns the time of the last accepted detection, if any.
func (c *Cooldown) LastDetection() (time.Time, bool) {
	return c.last, c.detected
}
