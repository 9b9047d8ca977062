package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_CalculateDelay(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		{
			name:        "first retry uses initial delay",
			policy:      Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
			attempt:     1,
			expectedMin: 100 * time.Millisecond,
			expectedMax: 100 * time.Millisecond,
		},
		{
			name:        "exponential growth",
			policy:      Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2},
			attempt:     3,
			expectedMin: 400 * time.Millisecond,
			expectedMax: 400 * time.Millisecond,
		},
		{
			name:        "capped at max delay",
			policy:      Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 250 * time.Millisecond, Multiplier: 2},
			attempt:     5,
			expectedMin: 250 * time.Millisecond,
			expectedMax: 250 * time.Millisecond,
		},
		{
			name:        "multiplier below one is flat",
			policy:      Policy{InitialDelay: 100 * time.Millisecond, Multiplier: 0},
			attempt:     4,
			expectedMin: 100 * time.Millisecond,
			expectedMax: 100 * time.Millisecond,
		},
		{
			name:        "jitter stays in band",
			policy:      Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterFactor: 0.5},
			attempt:     2,
			expectedMin: 100 * time.Millisecond,
			expectedMax: 300 * time.Millisecond,
		},
		{
			name:        "attempt zero",
			policy:      DefaultPolicy(),
			attempt:     0,
			expectedMin: 0,
			expectedMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				delay := tt.policy.CalculateDelay(tt.attempt)
				assert.GreaterOrEqual(t, delay, tt.expectedMin)
				assert.LessOrEqual(t, delay, tt.expectedMax)
			}
		})
	}
}

func TestPolicy_Attempts(t *testing.T) {
	assert.Equal(t, 1, Policy{}.attempts())
	assert.Equal(t, 1, NoRetryPolicy().attempts())
	assert.Equal(t, 3, DefaultPolicy().attempts())
}
