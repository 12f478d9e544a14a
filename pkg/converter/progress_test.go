package converter_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

func TestProgressTracker_Counts(t *testing.T) {
	tracker := converter.NewProgressTracker(4)

	tracker.Observe(converter.JobResult{Status: converter.StatusSuccess, DurationMs: 100})
	tracker.Observe(converter.JobResult{Status: converter.StatusFailed, DurationMs: 50})
	tracker.Observe(converter.JobResult{Status: converter.StatusTimedOut, DurationMs: 200})

	p := tracker.Snapshot()
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 3, p.Completed)
	assert.Equal(t, 1, p.Succeeded)
	assert.Equal(t, 2, p.Failed, "timeouts count as failures")
}

func TestProgressTracker_MeanAndRemaining(t *testing.T) {
	tracker := converter.NewProgressTracker(10)

	p := tracker.Snapshot()
	assert.Zero(t, p.Remaining, "no estimate before the first completion")
	assert.Zero(t, p.MeanPerJob)

	tracker.Observe(converter.JobResult{Status: converter.StatusSuccess, DurationMs: 300})
	tracker.Observe(converter.JobResult{Status: converter.StatusSuccess, DurationMs: 100})

	p = tracker.Snapshot()
	assert.Equal(t, 200*time.Millisecond, p.MeanPerJob)
	assert.Greater(t, p.Remaining, time.Duration(0))
}

func TestProgressTracker_ConcurrentObserve(t *testing.T) {
	const total = 200
	tracker := converter.NewProgressTracker(total)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := converter.StatusSuccess
			if i%5 == 0 {
				status = converter.StatusFailed
			}
			tracker.Observe(converter.JobResult{Status: status, DurationMs: 1})
		}(i)
	}
	wg.Wait()

	p := tracker.Snapshot()
	assert.Equal(t, total, p.Completed)
	assert.Equal(t, total/5, p.Failed)
	assert.Equal(t, total-total/5, p.Succeeded)
}
