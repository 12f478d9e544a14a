package converter

import (
	"sync"
	"time"
)

// Progress is a point-in-time snapshot of a running batch.
type Progress struct {
	Total     int
	Completed int
	Succeeded int
	Failed    int // includes timeouts
	Elapsed   time.Duration
	// Remaining is a linear extrapolation from the mean per-job duration over
	// completed jobs. Zero until at least one job has completed.
	Remaining time.Duration
	// MeanPerJob is the average wall-clock duration of completed jobs.
	MeanPerJob time.Duration
}

// ProgressTracker turns the unordered stream of job completions into a
// monotonically advancing progress signal. Observe is cheap and never blocks
// on rendering; display is the concern of whoever polls Snapshot or listens
// to hooks.
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	completed int
	succeeded int
	failed    int
	jobTime   time.Duration
	start     time.Time
}

// NewProgressTracker starts tracking a batch of the given size.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{total: total, start: time.Now()}
}

// Observe records one job completion.
func (t *ProgressTracker) Observe(res JobResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.jobTime += time.Duration(res.DurationMs) * time.Millisecond
	if res.Status == StatusSuccess {
		t.succeeded++
	} else {
		t.failed++
	}
}

// Snapshot returns the current progress.
func (t *ProgressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{
		Total:     t.total,
		Completed: t.completed,
		Succeeded: t.succeeded,
		Failed:    t.failed,
		Elapsed:   time.Since(t.start),
	}
	if t.completed > 0 {
		p.MeanPerJob = t.jobTime / time.Duration(t.completed)
		remaining := t.total - t.completed
		p.Remaining = p.Elapsed / time.Duration(t.completed) * time.Duration(remaining)
	}
	return p
}
