package converter

import (
	"sync"
	"time"
)

// JobResult is the outcome of one conversion job. Created by a worker (or by
// the pool on timeout), immutable once created.
type JobResult struct {
	InputPath  string    `json:"inputPath" yaml:"inputPath"`
	OutputPath string    `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
	Status     Status    `json:"status" yaml:"status"`
	Kind       ErrorKind `json:"errorKind,omitempty" yaml:"errorKind,omitempty"`
	Message    string    `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64     `json:"durationMs" yaml:"durationMs"`
	OutputSize int64     `json:"outputSizeBytes,omitempty" yaml:"outputSizeBytes,omitempty"`
}

// RejectedFile records a candidate excluded by validation.
type RejectedFile struct {
	Path    string    `json:"path" yaml:"path"`
	Kind    ErrorKind `json:"errorKind" yaml:"errorKind"`
	Message string    `json:"error" yaml:"error"`
}

// Summary contains the aggregate statistics of one batch run.
//
// Counts obey two conservation laws: ValidatedCount + RejectedCount ==
// TotalDiscovered, and SucceededCount + FailedCount + PendingCount ==
// ValidatedCount. PendingCount is nonzero only for cancelled runs.
type Summary struct {
	OutputDir        string            `json:"outputDir" yaml:"outputDir"`
	TotalDiscovered  int               `json:"totalDiscovered" yaml:"totalDiscovered"`
	RejectedCount    int               `json:"rejectedCount" yaml:"rejectedCount"`
	ValidatedCount   int               `json:"validatedCount" yaml:"validatedCount"`
	SucceededCount   int               `json:"succeededCount" yaml:"succeededCount"`
	FailedCount      int               `json:"failedCount" yaml:"failedCount"` // includes timeouts
	TimedOutCount    int               `json:"timedOutCount" yaml:"timedOutCount"`
	PendingCount     int               `json:"pendingCount" yaml:"pendingCount"`
	FailureBreakdown map[ErrorKind]int `json:"failureBreakdown,omitempty" yaml:"failureBreakdown,omitempty"`
	Incomplete       bool              `json:"incomplete" yaml:"incomplete"`
	DurationSeconds  float64           `json:"durationSeconds" yaml:"durationSeconds"`
	// FilesPerMinute is succeeded conversions normalized to a per-minute
	// rate over the whole batch duration.
	FilesPerMinute float64 `json:"filesPerMinute" yaml:"filesPerMinute"`
	// AvgSecondsPerFile is the mean wall-clock conversion time over all
	// resolved jobs.
	AvgSecondsPerFile float64   `json:"avgSecondsPerFile" yaml:"avgSecondsPerFile"`
	Workers           int       `json:"workers" yaml:"workers"`
	Quality           Quality   `json:"quality" yaml:"quality"`
	Timestamp         time.Time `json:"timestamp" yaml:"timestamp"`
	SchemaVersion     string    `json:"schemaVersion" yaml:"schemaVersion"`
}

// Report is the full outcome of one batch invocation.
type Report struct {
	Summary  Summary        `json:"summary" yaml:"summary"`
	Results  []JobResult    `json:"results" yaml:"results"`
	Rejected []RejectedFile `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Clean reports whether every discovered, validated candidate converted
// successfully and the run was not cut short.
func (r Report) Clean() bool {
	s := r.Summary
	return !s.Incomplete && s.RejectedCount == 0 && s.FailedCount == 0 && s.PendingCount == 0
}

// Failures returns the results that did not succeed, for per-file error
// listings.
func (r Report) Failures() []JobResult {
	var out []JobResult
	for _, res := range r.Results {
		if res.Status != StatusSuccess {
			out = append(out, res)
		}
	}
	return out
}

// reportAggregator folds results and validation rejects into the final
// Report. Thread-safe; finalized once by report() after all jobs resolve.
type reportAggregator struct {
	mu       sync.Mutex
	results  []JobResult
	rejected []RejectedFile
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		results:  make([]JobResult, 0, 64),
		rejected: make([]RejectedFile, 0, 16),
	}
}

func (a *reportAggregator) addResult(res JobResult) {
	a.mu.Lock()
	a.results = append(a.results, res)
	a.mu.Unlock()
}

func (a *reportAggregator) addRejected(rej RejectedFile) {
	a.mu.Lock()
	a.rejected = append(a.rejected, rej)
	a.mu.Unlock()
}

func (a *reportAggregator) report(opts *Options, start time.Time, totalDiscovered, validated int, incomplete bool) Report {
	a.mu.Lock()
	results := make([]JobResult, len(a.results))
	copy(results, a.results)
	rejected := make([]RejectedFile, len(a.rejected))
	copy(rejected, a.rejected)
	a.mu.Unlock()

	elapsed := time.Since(start)
	summary := Summary{
		OutputDir:        opts.OutputDir,
		TotalDiscovered:  totalDiscovered,
		RejectedCount:    len(rejected),
		ValidatedCount:   validated,
		PendingCount:     validated - len(results),
		FailureBreakdown: make(map[ErrorKind]int),
		Incomplete:       incomplete,
		DurationSeconds:  elapsed.Seconds(),
		Workers:          opts.Workers,
		Quality:          opts.Quality,
		Timestamp:        time.Now().UTC(),
		SchemaVersion:    ReportSchemaVersion,
	}

	var jobMs int64
	for _, res := range results {
		jobMs += res.DurationMs
		switch res.Status {
		case StatusSuccess:
			summary.SucceededCount++
		case StatusTimedOut:
			summary.FailedCount++
			summary.TimedOutCount++
			summary.FailureBreakdown[res.Kind]++
		default:
			summary.FailedCount++
			summary.FailureBreakdown[res.Kind]++
		}
	}
	for _, rej := range rejected {
		summary.FailureBreakdown[rej.Kind]++
	}
	if len(summary.FailureBreakdown) == 0 {
		summary.FailureBreakdown = nil
	}

	if elapsed > 0 {
		summary.FilesPerMinute = float64(summary.SucceededCount) / elapsed.Minutes()
	}
	if len(results) > 0 {
		summary.AvgSecondsPerFile = float64(jobMs) / 1000 / float64(len(results))
	}

	return Report{Summary: summary, Results: results, Rejected: rejected}
}
