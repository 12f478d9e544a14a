package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ConversionJob is one unit of work: a validated input bound to a
// pre-computed, collision-free output path. Owned exclusively by the worker
// executing it until completion or timeout.
type ConversionJob struct {
	InputPath  string
	OutputPath string
	Quality    Quality
	Timeout    time.Duration
}

// Engine orchestrates one batch run: discovery, validation, bounded parallel
// conversion, progress tracking and report aggregation. The control logic is
// single-threaded; it only blocks waiting for the next result from the pool.
type Engine struct {
	opts       *Options
	logger     *slog.Logger
	validator  *FileValidator
	discoverer *Discoverer
	hooks      Hooks
	aggregator *reportAggregator
	tracker    *ProgressTracker

	// hardCtx bounds every job context independently of the run context, so
	// a graceful cancellation lets in-flight jobs finish (or hit their
	// timeout) while Abort terminates them immediately.
	hardCtx  context.Context
	hardStop context.CancelFunc

	trackerMu sync.Mutex
}

// NewEngine validates options, applies defaults and builds an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("%w: Logger implementation (slog.Handler) cannot be nil", ErrConfigValidation)
	}
	if opts.Converter == nil {
		return nil, fmt.Errorf("%w: DocumentConverter implementation cannot be nil", ErrConfigValidation)
	}
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("%w: at least one input path is required", ErrConfigValidation)
	}
	if opts.EventHooks == nil {
		opts.EventHooks = &NoOpHooks{}
	}
	if opts.OutputDir == "" {
		opts.OutputDir = DefaultOutputDir
	}
	if len(opts.SupportedExtensions) == 0 {
		opts.SupportedExtensions = DefaultSupportedExtensions()
	}
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if opts.JobTimeout <= 0 {
		if opts.PerJobTimeoutSeconds > 0 {
			opts.JobTimeout = time.Duration(opts.PerJobTimeoutSeconds) * time.Second
		} else {
			opts.JobTimeout = DefaultJobTimeout
		}
	}
	if opts.Quality == "" {
		opts.Quality = DefaultQuality
	}

	logger := slog.New(opts.Logger).With(slog.String("component", "engine"))
	hardCtx, hardStop := context.WithCancel(context.Background())

	return &Engine{
		opts:       &opts,
		logger:     logger,
		validator:  NewFileValidator(opts.MaxFileSizeBytes, opts.SupportedExtensions, opts.Logger),
		discoverer: NewDiscoverer(opts.SupportedExtensions, opts.Recursive, opts.Logger),
		hooks:      opts.EventHooks,
		aggregator: newReportAggregator(),
		hardCtx:    hardCtx,
		hardStop:   hardStop,
	}, nil
}

// Abort hard-stops the run: in-flight job contexts are cancelled immediately
// instead of draining to completion. Safe to call from any goroutine.
func (e *Engine) Abort() {
	e.logger.Warn("Hard stop requested, terminating in-flight jobs")
	e.hardStop()
}

// Progress returns a snapshot of the running batch, or the zero value before
// dispatch has begun.
func (e *Engine) Progress() Progress {
	e.trackerMu.Lock()
	t := e.tracker
	e.trackerMu.Unlock()
	if t == nil {
		return Progress{}
	}
	return t.Snapshot()
}

// Run executes the batch. Cancelling ctx stops dispatching new jobs and
// drains in-flight ones to natural completion or timeout; the partial report
// is returned marked incomplete together with the context error. Per-file
// failures never surface as errors: they resolve into JobResults. The only
// fatal error conditions are invalid configuration and an output directory
// that cannot be created.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	defer e.hardStop()

	candidates, discErr := e.discoverer.Discover(ctx, e.opts.Inputs)
	for _, cand := range candidates {
		if hookErr := e.hooks.OnFileDiscovered(cand.Path); hookErr != nil {
			e.logger.Warn("OnFileDiscovered hook failed", slog.String("error", hookErr.Error()))
		}
	}
	if discErr != nil {
		return e.aggregator.report(e.opts, start, len(candidates), 0, true), discErr
	}

	valid := e.validate(candidates)
	jobs := e.planJobs(valid)

	workers := OptimalWorkerCount(e.opts.Workers, len(jobs))
	e.opts.Workers = workers

	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		e.logger.Error("Cannot create output directory", slog.String("path", e.opts.OutputDir), slog.String("error", err.Error()))
		report := e.aggregator.report(e.opts, start, len(candidates), len(jobs), true)
		return report, fmt.Errorf("%w %q: %v", ErrOutputDirCreate, e.opts.OutputDir, err)
	}

	e.logger.Info("Starting batch conversion",
		slog.Int("candidates", len(candidates)),
		slog.Int("validated", len(jobs)),
		slog.Int("workers", workers),
		slog.Duration("jobTimeout", e.opts.JobTimeout))

	e.trackerMu.Lock()
	e.tracker = NewProgressTracker(len(jobs))
	e.trackerMu.Unlock()

	jobsChan := make(chan ConversionJob)
	// Buffered to the batch size: many producers, one consumer, no loss and
	// no producer ever blocks on a slow consumer.
	results := make(chan JobResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go e.worker(&wg, i, jobsChan, results)
	}

	go func() {
		defer close(jobsChan)
		for _, job := range jobs {
			select {
			case jobsChan <- job:
			case <-ctx.Done():
				e.logger.Info("Cancellation received, no further jobs dispatched")
				return
			case <-e.hardCtx.Done():
				return
			}
		}
	}()

	aggregatorDone := make(chan struct{})
	go func() {
		defer close(aggregatorDone)
		for res := range results {
			e.tracker.Observe(res)
			e.aggregator.addResult(res)
		}
	}()

	wg.Wait()
	close(results)
	<-aggregatorDone

	incomplete := ctx.Err() != nil || e.hardCtx.Err() != nil
	report := e.aggregator.report(e.opts, start, len(candidates), len(jobs), incomplete)

	e.logger.Info("Batch conversion finished",
		slog.Int("succeeded", report.Summary.SucceededCount),
		slog.Int("failed", report.Summary.FailedCount),
		slog.Int("rejected", report.Summary.RejectedCount),
		slog.Int("pending", report.Summary.PendingCount),
		slog.Duration("duration", time.Since(start)))

	if hookErr := e.hooks.OnRunComplete(report); hookErr != nil {
		e.logger.Warn("OnRunComplete hook failed", slog.String("error", hookErr.Error()))
	}

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// validate filters candidates, recording rejects in the aggregator. Every
// candidate yields exactly one ValidationOutcome.
func (e *Engine) validate(candidates []Candidate) []Candidate {
	valid := candidates[:0:0]
	for _, cand := range candidates {
		outcome := e.validator.Validate(cand.Path)
		if outcome.Valid {
			valid = append(valid, cand)
			continue
		}
		e.logger.Warn("Candidate rejected",
			slog.String("path", cand.Path),
			slog.String("kind", string(outcome.Kind)),
			slog.String("reason", outcome.Message))
		e.aggregator.addRejected(RejectedFile{Path: cand.Path, Kind: outcome.Kind, Message: outcome.Message})
		if hookErr := e.hooks.OnFileStatusUpdate(cand.Path, StatusRejected, outcome.Message, 0); hookErr != nil {
			e.logger.Warn("OnFileStatusUpdate hook failed", slog.String("error", hookErr.Error()))
		}
	}
	return valid
}

// planJobs derives one job per valid candidate. Output names come from the
// input stem; collisions between distinct inputs (same basename in different
// directories) are disambiguated with a numeric suffix in submission order,
// so no two jobs in a batch ever share an output path.
func (e *Engine) planJobs(valid []Candidate) []ConversionJob {
	jobs := make([]ConversionJob, 0, len(valid))
	taken := make(map[string]struct{}, len(valid))

	for _, cand := range valid {
		stem := strings.TrimSuffix(filepath.Base(cand.Path), filepath.Ext(cand.Path))
		out := filepath.Join(e.opts.OutputDir, stem+PDFExtension)
		for n := 1; ; n++ {
			if _, dup := taken[out]; !dup {
				break
			}
			out = filepath.Join(e.opts.OutputDir, fmt.Sprintf("%s_%d%s", stem, n, PDFExtension))
		}
		taken[out] = struct{}{}

		jobs = append(jobs, ConversionJob{
			InputPath:  cand.Path,
			OutputPath: out,
			Quality:    e.opts.Quality,
			Timeout:    e.opts.JobTimeout,
		})
	}
	return jobs
}

// worker drains the job channel until it closes, refilling its slot with the
// next pending job as soon as the current one resolves.
func (e *Engine) worker(wg *sync.WaitGroup, id int, jobsChan <-chan ConversionJob, results chan<- JobResult) {
	defer wg.Done()
	logger := e.logger.With(slog.Int("workerID", id))
	logger.Debug("Worker started")

	for job := range jobsChan {
		if hookErr := e.hooks.OnFileStatusUpdate(job.InputPath, StatusConverting, "", 0); hookErr != nil {
			logger.Warn("OnFileStatusUpdate hook failed", slog.String("error", hookErr.Error()))
		}

		res := e.runJob(logger, job)
		results <- res

		if hookErr := e.hooks.OnFileStatusUpdate(job.InputPath, res.Status, res.Message,
			time.Duration(res.DurationMs)*time.Millisecond); hookErr != nil {
			logger.Warn("OnFileStatusUpdate hook failed", slog.String("error", hookErr.Error()))
		}
	}
	logger.Debug("Worker shutting down (channel closed)")
}

// runJob executes a single conversion inside its own timeout context and
// converts every failure mode, panics included, into a JobResult. Nothing
// escapes this boundary.
func (e *Engine) runJob(logger *slog.Logger, job ConversionJob) (res JobResult) {
	start := time.Now()
	res = JobResult{InputPath: job.InputPath, OutputPath: job.OutputPath}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered in conversion", slog.String("path", job.InputPath), slog.Any("panicValue", r))
			res.Status = StatusFailed
			res.Kind = KindConversionError
			res.Message = fmt.Sprintf("panic during conversion: %v", r)
			res.OutputPath = ""
			res.OutputSize = 0
			res.DurationMs = time.Since(start).Milliseconds()
		}
	}()

	jobCtx, cancel := context.WithTimeout(e.hardCtx, job.Timeout)
	defer cancel()

	err := e.opts.Converter.Convert(jobCtx, job.InputPath, job.OutputPath, job.Quality)
	res.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		res.OutputPath = ""
		switch {
		case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
			res.Status = StatusTimedOut
			res.Kind = KindTimedOut
			res.Message = fmt.Sprintf("conversion exceeded %s budget", job.Timeout)
		case errors.Is(err, ErrOutputWrite):
			res.Status = StatusFailed
			res.Kind = KindOutputWriteFailed
			res.Message = err.Error()
		default:
			res.Status = StatusFailed
			res.Kind = KindConversionError
			res.Message = err.Error()
		}
		logger.Warn("Conversion failed",
			slog.String("path", job.InputPath),
			slog.String("kind", string(res.Kind)),
			slog.String("error", res.Message))
		return res
	}

	info, statErr := os.Stat(job.OutputPath)
	if statErr != nil {
		res.Status = StatusFailed
		res.Kind = KindOutputWriteFailed
		res.Message = fmt.Sprintf("converter reported success but output is missing: %v", statErr)
		res.OutputPath = ""
		return res
	}

	res.Status = StatusSuccess
	res.OutputSize = info.Size()
	logger.Debug("Conversion succeeded",
		slog.String("path", job.InputPath),
		slog.String("output", job.OutputPath),
		slog.Int64("sizeBytes", info.Size()),
		slog.Int64("durationMs", res.DurationMs))
	return res
}

// OptimalWorkerCount resolves the pool size. An explicit request is honored
// (clamped to at least one); requested == 0 selects an automatic count scaled
// to the batch size and capped at the available cores, since each conversion
// saturates roughly one core.
func OptimalWorkerCount(requested, jobCount int) int {
	cpus := runtime.NumCPU()
	if requested > 0 {
		return requested
	}
	switch {
	case jobCount <= 5:
		return min(2, cpus)
	case jobCount <= 20:
		return min(4, cpus)
	default:
		return min(DefaultMaxWorkers, cpus)
	}
}
