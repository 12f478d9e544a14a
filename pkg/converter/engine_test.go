package converter_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fclaiba/PDFConvertor/internal/testutil"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// recordingHooks collects hook invocations for assertions. Thread-safe.
type recordingHooks struct {
	mu         sync.Mutex
	discovered []string
	statuses   map[string][]converter.Status
	completed  bool
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{statuses: make(map[string][]converter.Status)}
}

func (h *recordingHooks) OnFileDiscovered(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discovered = append(h.discovered, path)
	return nil
}

func (h *recordingHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses[path] = append(h.statuses[path], status)
	return nil
}

func (h *recordingHooks) OnRunComplete(report converter.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = true
	return nil
}

func baseOptions(t *testing.T, inputDir, outputDir string, conv converter.DocumentConverter) converter.Options {
	t.Helper()
	return converter.Options{
		Inputs:     []string{inputDir},
		OutputDir:  outputDir,
		Converter:  conv,
		Logger:     slog.NewTextHandler(io.Discard, nil),
		JobTimeout: 30 * time.Second,
	}
}

func assertConservation(t *testing.T, s converter.Summary) {
	t.Helper()
	assert.Equal(t, s.TotalDiscovered, s.ValidatedCount+s.RejectedCount, "validated+rejected must equal discovered")
	assert.Equal(t, s.ValidatedCount, s.SucceededCount+s.FailedCount+s.PendingCount, "succeeded+failed+pending must equal validated")
}

func TestEngineRun_AllSucceed(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for _, name := range []string{"a.docx", "b.docx", "c.docx"} {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, name), 512)
	}

	hooks := newRecordingHooks()
	opts := baseOptions(t, inputDir, outputDir, testutil.SucceedingConverter(0))
	opts.Workers = 2
	opts.EventHooks = hooks

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalDiscovered)
	assert.Equal(t, 3, report.Summary.SucceededCount)
	assert.Zero(t, report.Summary.FailedCount)
	assert.Zero(t, report.Summary.RejectedCount)
	assert.True(t, report.Clean())
	assertConservation(t, report.Summary)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		assert.FileExists(t, filepath.Join(outputDir, name))
	}
	assert.Len(t, hooks.discovered, 3)
	assert.True(t, hooks.completed)
}

func TestEngineRun_MixedValidity(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "good.docx"), 512)
	testutil.CreateDummyFile(t, filepath.Join(inputDir, "fake.docx"), []byte("not a zip archive at all"))
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "huge.docx"), 4096)

	opts := baseOptions(t, inputDir, outputDir, testutil.SucceedingConverter(0))
	opts.MaxFileSizeBytes = 1024

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.TotalDiscovered)
	assert.Equal(t, 2, report.Summary.RejectedCount)
	assert.Equal(t, 1, report.Summary.SucceededCount)
	assert.False(t, report.Clean())
	assertConservation(t, report.Summary)

	kinds := make(map[converter.ErrorKind]bool)
	for _, rej := range report.Rejected {
		kinds[rej.Kind] = true
	}
	assert.True(t, kinds[converter.KindCorruptOrMismatch])
	assert.True(t, kinds[converter.KindTooLarge])
}

func TestEngineRun_FailureIsolation(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 4; i++ {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, fmt.Sprintf("doc%d.docx", i)), 512)
	}
	poison := filepath.Join(inputDir, "doc2.docx")

	// One input panics mid-conversion; the rest of the batch must complete.
	conv := converter.ConverterFunc(func(ctx context.Context, in, out string, q converter.Quality) error {
		if in == poison {
			panic("converter blew up")
		}
		return os.WriteFile(out, []byte("%PDF-1.4\n"), 0o644)
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	opts.Workers = 2
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.SucceededCount)
	assert.Equal(t, 1, report.Summary.FailedCount)
	assertConservation(t, report.Summary)

	var failed converter.JobResult
	for _, res := range report.Results {
		if res.Status == converter.StatusFailed {
			failed = res
		}
	}
	assert.Equal(t, poison, failed.InputPath)
	assert.Equal(t, converter.KindConversionError, failed.Kind)
	assert.Contains(t, failed.Message, "panic during conversion")
	assert.Empty(t, failed.OutputPath)
}

func TestEngineRun_PerJobTimeout(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 10; i++ {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, fmt.Sprintf("doc%02d.docx", i)), 512)
	}
	stuck := filepath.Join(inputDir, "doc04.docx")

	conv := converter.ConverterFunc(func(ctx context.Context, in, out string, q converter.Quality) error {
		if in == stuck {
			<-ctx.Done()
			return ctx.Err()
		}
		return os.WriteFile(out, []byte("%PDF-1.4\n"), 0o644)
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	opts.Workers = 3
	opts.JobTimeout = 200 * time.Millisecond

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)

	start := time.Now()
	report, err := engine.Run(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, 9, report.Summary.SucceededCount)
	assert.Equal(t, 1, report.Summary.FailedCount)
	assert.Equal(t, 1, report.Summary.TimedOutCount)
	assertConservation(t, report.Summary)
	// The stuck job is bounded by its own budget, not the batch.
	assert.Less(t, elapsed, 5*time.Second)

	var timedOut converter.JobResult
	for _, res := range report.Results {
		if res.Status == converter.StatusTimedOut {
			timedOut = res
		}
	}
	assert.Equal(t, stuck, timedOut.InputPath)
	assert.Equal(t, converter.KindTimedOut, timedOut.Kind)
}

func TestEngineRun_OutputCollisionDisambiguation(t *testing.T) {
	inputA := t.TempDir()
	inputB := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	testutil.CreateDocxFile(t, filepath.Join(inputA, "report.docx"), 512)
	testutil.CreateDocxFile(t, filepath.Join(inputB, "report.docx"), 512)

	opts := baseOptions(t, inputA, outputDir, testutil.SucceedingConverter(0))
	opts.Inputs = []string{inputA, inputB}

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, report.Summary.SucceededCount)
	outputs := map[string]bool{}
	for _, res := range report.Results {
		outputs[filepath.Base(res.OutputPath)] = true
	}
	assert.True(t, outputs["report.pdf"])
	assert.True(t, outputs["report_1.pdf"])
	assert.FileExists(t, filepath.Join(outputDir, "report.pdf"))
	assert.FileExists(t, filepath.Join(outputDir, "report_1.pdf"))
}

func TestEngineRun_GracefulCancellation(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 8; i++ {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, fmt.Sprintf("doc%d.docx", i)), 512)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	conv := converter.ConverterFunc(func(jobCtx context.Context, in, out string, q converter.Quality) error {
		if started.Add(1) == 2 {
			cancel()
		}
		time.Sleep(50 * time.Millisecond)
		return os.WriteFile(out, []byte("%PDF-1.4\n"), 0o644)
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	opts.Workers = 1

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Summary.Incomplete)
	assert.Greater(t, report.Summary.PendingCount, 0, "undispatched jobs remain pending")
	assert.GreaterOrEqual(t, report.Summary.SucceededCount, 1, "in-flight jobs drain to completion")
	assertConservation(t, report.Summary)
}

func TestEngineRun_OutputDirCreateFailure(t *testing.T) {
	inputDir := t.TempDir()
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "a.docx"), 512)

	// A file where the output directory should be makes MkdirAll fail.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("occupied"), 0o644))

	opts := baseOptions(t, inputDir, blocked, testutil.SucceedingConverter(0))
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, converter.ErrOutputDirCreate)
	assert.True(t, report.Summary.Incomplete)
	assert.Zero(t, report.Summary.SucceededCount)
}

func TestEngineRun_AbortStopsInFlightJobs(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 3; i++ {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, fmt.Sprintf("doc%d.docx", i)), 512)
	}

	opts := baseOptions(t, inputDir, outputDir, testutil.HangingConverter())
	opts.Workers = 3
	opts.JobTimeout = time.Minute

	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		engine.Abort()
	}()

	start := time.Now()
	report, err := engine.Run(context.Background())
	require.NoError(t, err, "abort is not a run-context cancellation")
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, report.Summary.Incomplete)
	assert.Zero(t, report.Summary.SucceededCount)
}

func TestEngineRun_EmptyBatch(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	opts := baseOptions(t, inputDir, outputDir, testutil.SucceedingConverter(0))
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Summary.TotalDiscovered)
	assert.True(t, report.Clean())
	assert.DirExists(t, outputDir, "output directory is created even for empty batches")
}

func TestEngineRun_MissingOutputIsWriteFailure(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "a.docx"), 512)

	// Converter claims success but writes nothing.
	conv := converter.ConverterFunc(func(ctx context.Context, in, out string, q converter.Quality) error {
		return nil
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, converter.StatusFailed, report.Results[0].Status)
	assert.Equal(t, converter.KindOutputWriteFailed, report.Results[0].Kind)
}

func TestNewEngine_Validation(t *testing.T) {
	handler := slog.NewTextHandler(io.Discard, nil)
	conv := testutil.SucceedingConverter(0)

	_, err := converter.NewEngine(converter.Options{Converter: conv, Inputs: []string{"x"}})
	assert.ErrorIs(t, err, converter.ErrConfigValidation)

	_, err = converter.NewEngine(converter.Options{Logger: handler, Inputs: []string{"x"}})
	assert.ErrorIs(t, err, converter.ErrConfigValidation)

	_, err = converter.NewEngine(converter.Options{Logger: handler, Converter: conv})
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestEngineRun_ErrOutputWriteClassification(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "a.docx"), 512)

	conv := converter.ConverterFunc(func(ctx context.Context, in, out string, q converter.Quality) error {
		return fmt.Errorf("%w: disk full", converter.ErrOutputWrite)
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, converter.KindOutputWriteFailed, report.Results[0].Kind)
}

func TestOptimalWorkerCount(t *testing.T) {
	assert.Equal(t, 7, converter.OptimalWorkerCount(7, 100), "explicit request is honored")
	assert.LessOrEqual(t, converter.OptimalWorkerCount(0, 3), 2, "small batches use few workers")
	assert.LessOrEqual(t, converter.OptimalWorkerCount(0, 15), 4)
	assert.LessOrEqual(t, converter.OptimalWorkerCount(0, 500), converter.DefaultMaxWorkers)
}

func TestEngineProgress_DuringRun(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 4; i++ {
		testutil.CreateDocxFile(t, filepath.Join(inputDir, fmt.Sprintf("doc%d.docx", i)), 512)
	}

	opts := baseOptions(t, inputDir, outputDir, testutil.SucceedingConverter(20*time.Millisecond))
	opts.Workers = 2
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)

	assert.Zero(t, engine.Progress().Total, "zero value before dispatch")

	report, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, report.Summary.SucceededCount)

	p := engine.Progress()
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 4, p.Completed)
}

var errBackend = errors.New("backend unavailable")

func TestEngineRun_ConversionErrorMessageSurfaces(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")
	testutil.CreateDocxFile(t, filepath.Join(inputDir, "a.docx"), 512)

	conv := converter.ConverterFunc(func(ctx context.Context, in, out string, q converter.Quality) error {
		return errBackend
	})

	opts := baseOptions(t, inputDir, outputDir, conv)
	engine, err := converter.NewEngine(opts)
	require.NoError(t, err)
	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, converter.KindConversionError, report.Results[0].Kind)
	assert.Contains(t, report.Results[0].Message, "backend unavailable")
}
