package util

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// StepClock returns a fixed start time that advances by Step on every call.
type StepClock struct {
	mu   sync.Mutex
	At   time.Time
	Step time.Duration
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.At
	c.At = c.At.Add(c.Step)
	return now
}
