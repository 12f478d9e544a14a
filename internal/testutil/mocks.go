package testutil

import (
	"context"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// MockConverter provides a testify mock of converter.DocumentConverter.
// Configure expectations with .On("Convert", ...).Return(...).
type MockConverter struct {
	mock.Mock
}

// Convert mocks the Convert method.
func (m *MockConverter) Convert(ctx context.Context, inputPath, outputPath string, quality converter.Quality) error {
	args := m.Called(ctx, inputPath, outputPath, quality)
	return args.Error(0)
}

// SucceedingConverter returns a converter that writes a minimal PDF stub to
// the output path, optionally sleeping per call to simulate work.
func SucceedingConverter(delay time.Duration) converter.ConverterFunc {
	return func(ctx context.Context, inputPath, outputPath string, quality converter.Quality) error {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return os.WriteFile(outputPath, []byte("%PDF-1.4\n%%EOF\n"), 0o644)
	}
}

// HangingConverter returns a converter that blocks until its context
// expires, for exercising per-job timeouts.
func HangingConverter() converter.ConverterFunc {
	return func(ctx context.Context, inputPath, outputPath string, quality converter.Quality) error {
		<-ctx.Done()
		return ctx.Err()
	}
}

// MockHooks provides a testify mock of converter.Hooks.
type MockHooks struct {
	mock.Mock
}

// OnFileDiscovered mocks the OnFileDiscovered method.
func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report converter.Report) error {
	args := m.Called(report)
	return args.Error(0)
}
