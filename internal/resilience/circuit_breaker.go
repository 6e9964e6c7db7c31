package resilience

import (
	"sync"
	"time"
)

// CircuitBreaker is a failure-rate breaker, counting the requests seen since
// it last opened or closed, with a half-open probe state. Peer Sync (C5) wraps each peer endpoint in one of these so a
// single unreachable peer doesn't stall the bulk-fetch pool.
type CircuitBreaker struct {
	mu sync.Mutex

	minSamples      int
	failureRateOpen float64
	halfOpenAfter   time.Duration
	maxHalfOpen     int

	openedAt       time.Time
	state          breakerState
	successes      int
	failures       int
	halfOpenProbes int
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// NewCircuitBreaker builds a breaker that opens once minSamples requests
// have been observed and the failure rate reaches failureRateOpen, cooling
// down for halfOpenAfter before allowing maxHalfOpen probe requests.
func NewCircuitBreaker(minSamples int, failureRateOpen float64, halfOpenAfter time.Duration, maxHalfOpen int) *CircuitBreaker {
	return &CircuitBreaker{
		minSamples:      minSamples,
		failureRateOpen: failureRateOpen,
		halfOpenAfter:   halfOpenAfter,
		maxHalfOpen:     maxHalfOpen,
		state:           stateClosed,
	}
}

// Allow reports whether a request may proceed right now.
func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateOpen:
		if time.Since(c.openedAt) >= c.halfOpenAfter {
			c.state = stateHalfOpen
			c.halfOpenProbes = 1 // this request is the first probe
		} else {
			return false
		}
	case stateHalfOpen:
		if c.halfOpenProbes >= c.maxHalfOpen {
			return false
		}
		c.halfOpenProbes++
	}
	return true
}

// RecordResult reports the outcome of a request admitted by Allow.
func (c *CircuitBreaker) RecordResult(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.successes++
	} else {
		c.failures++
	}

	total := c.successes + c.failures
	if c.state == stateHalfOpen {
		if success {
			c.reset()
		} else {
			c.trip()
		}
		return
	}
	if total >= c.minSamples {
		rate := float64(c.failures) / float64(total)
		if rate >= c.failureRateOpen {
			c.trip()
		}
	}
}

func (c *CircuitBreaker) trip() {
	c.state = stateOpen
	c.openedAt = time.Now()
	c.successes, c.failures = 0, 0
}

func (c *CircuitBreaker) reset() {
	c.state = stateClosed
	c.successes, c.failures = 0, 0
}
