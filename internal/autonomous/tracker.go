package autonomous

import "sync"

const defaultTrackedRuns = 1000

// tracker keeps the latest snapshot of recent runs in memory. The oldest
// runs are evicted once limit is reached.
type tracker struct {
	mu    sync.RWMutex
	runs  map[string]*RunResult
	order []string
	limit int
}

func newTracker(limit int) *tracker {
	if limit <= 0 {
		limit = defaultTrackedRuns
	}
	return &tracker{runs: make(map[string]*RunResult), limit: limit}
}

// put stores a copy of run
func (t *tracker) put(run *RunResult) {
	snapshot := run.clone()

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.runs[run.RunID]; !ok {
		t.order = append(t.order, run.RunID)
		for len(t.order) > t.limit {
			delete(t.runs, t.order[0])
			t.order = t.order[1:]
		}
	}
	t.runs[run.RunID] = snapshot
}

func (t *tracker) get(runID string) (*RunResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[runID]
	if !ok {
		return nil, false
	}
	return run.clone(), true
}
