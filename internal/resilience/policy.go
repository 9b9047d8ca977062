// Package resilience provides blind transport retries and escalated retries for
// structured generation output.
package resilience

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines a retry strategy.
type Policy struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration
	Multiplier   float64 // exponential growth factor
	JitterFactor float64 // 0.0-1.0
	CallTimeout  time.Duration
}

// DefaultPolicy returns the policy used for generation backend calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
		CallTimeout:  60 * time.Second,
	}
}

// NoRetryPolicy returns a policy that makes a single attempt.
func NoRetryPolicy() Policy {
	return Policy{MaxAttempts: 1}
}

// CalculateDelay returns the wait before attempt+1, attempt counting from 1.
func (p Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialDelay <= 0 {
		return 0
	}

	factor := p.Multiplier
	if factor < 1 {
		factor = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFactor > 0 {
		delay += delay * p.JitterFactor * (rand.Float64()*2 - 1)
		if delay < 0 {
			delay = 0
		}
	}

	return time.Duration(delay)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
