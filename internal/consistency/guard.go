// Package consistency waits for freshly written keys to become readable in an
// eventually consistent store.
package consistency

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/phish-simulator/internal/metrics"
)

// MinPollInterval bounds how often a key is checked
const MinPollInterval = 10 * time.Millisecond

// Reader is the read side of a key-value store
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Guard polls keys until they are all visible or a deadline elapses
type Guard struct {
	store  Reader
	logger zerolog.Logger
}

// NewGuard creates a guard over store
func NewGuard(store Reader, logger zerolog.Logger) *Guard {
	return &Guard{
		store:  store,
		logger: logger.With().Str("component", "consistency_guard").Logger(),
	}
}

// Wait returns true once every key has been read successfully, or false when
// timeout elapses. The deadline is independent of ctx cancellation. Each round
// checks all still-pending keys in parallel; keys seen once are not checked again.
// Read errors count as not yet visible.
func (g *Guard) Wait(ctx context.Context, keys []string, timeout, interval time.Duration) bool {
	pending := uniqueKeys(keys)
	if len(pending) == 0 {
		return true
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	rounds := 0
	for {
		rounds++
		pending = g.pollOnce(waitCtx, pending)
		if len(pending) == 0 {
			metrics.ConsistencyWaitsTotal.WithLabelValues("converged").Inc()
			g.logger.Debug().
				Int("keys", len(keys)).
				Int("rounds", rounds).
				Dur("elapsed", time.Since(start)).
				Msg("all keys visible")
			return true
		}

		timer := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			metrics.ConsistencyWaitsTotal.WithLabelValues("timeout").Inc()
			g.logger.Warn().
				Strs("pending", pending).
				Int("rounds", rounds).
				Dur("timeout", timeout).
				Msg("keys not visible before deadline")
			return false
		case <-timer.C:
		}
	}
}

// pollOnce reads every key once in parallel and returns those still missing.
// Each goroutine writes only its own slot.
func (g *Guard) pollOnce(ctx context.Context, keys []string) []string {
	visible := make([]bool, len(keys))

	var eg errgroup.Group
	for i, key := range keys {
		eg.Go(func() error {
			_, err := g.store.Get(ctx, key)
			visible[i] = err == nil
			return nil
		})
	}
	_ = eg.Wait()

	var missing []string
	for i, ok := range visible {
		if !ok {
			missing = append(missing, keys[i])
		}
	}
	return missing
}

func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
