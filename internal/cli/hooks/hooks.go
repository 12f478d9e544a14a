// Package hooks bridges engine events to the CLI's presentation layer: the
// Bubble Tea TUI, a progress bar, or plain structured logging.
package hooks

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// FileDiscoveredMsg signals that a candidate file was found during discovery.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's conversion status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   converter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the completion of the entire batch run.
type RunCompleteMsg struct{ Report converter.Report }

// TUIProgram is the interface needed to feed the Bubble Tea program.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// ProgressBar is the interface needed to drive the terminal progress bar,
// satisfied by *progressbar.ProgressBar. ChangeMax exists because the total
// is only known after discovery.
type ProgressBar interface {
	Add(num int) error
	ChangeMax(max int)
	Describe(description string)
	Close() error
}

// NoOpTUIProgram is a null TUIProgram.
type NoOpTUIProgram struct{}

func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NoOpProgressBar is a null ProgressBar.
type NoOpProgressBar struct{}

func (n *NoOpProgressBar) Add(num int) error           { return nil }
func (n *NoOpProgressBar) ChangeMax(max int)           {}
func (n *NoOpProgressBar) Describe(description string) {}
func (n *NoOpProgressBar) Close() error                { return nil }

// CLIHooks implements converter.Hooks, dispatching engine events to the
// active presentation mode. Methods are called concurrently from worker
// goroutines.
type CLIHooks struct {
	logger      *slog.Logger
	tuiEnabled  bool
	verbose     bool
	tuiProgram  TUIProgram
	progressBar ProgressBar
	barActive   bool

	mu         sync.Mutex
	discovered int
}

// NewCLIHooks builds hooks for the selected presentation mode. Pass nil for
// tuiProg or progBar when not applicable.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verbose bool, tuiProg TUIProgram, progBar ProgressBar) converter.Hooks {
	barActive := progBar != nil
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:      logger,
		tuiEnabled:  tuiEnabled,
		verbose:     verbose,
		tuiProgram:  tuiProg,
		progressBar: progBar,
		barActive:   barActive,
	}
}

// OnFileDiscovered handles a candidate found during discovery. In progress
// bar mode the bar's max grows with each discovery.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
		return nil
	}
	if h.verbose {
		h.logger.Debug("File discovered", slog.String("path", path))
	}
	if h.barActive {
		h.mu.Lock()
		h.discovered++
		h.progressBar.ChangeMax(h.discovered)
		h.mu.Unlock()
	}
	return nil
}

// OnFileStatusUpdate handles a status transition for one file. Thread-safe.
func (h *CLIHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileStatusUpdateMsg{
			Path:     path,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}

	if h.verbose {
		h.logVerbose(path, status, message, duration)
		return nil
	}

	if h.barActive {
		h.mu.Lock()
		if status.IsFinal() {
			_ = h.progressBar.Add(1)
		}
		h.mu.Unlock()
	}

	// Failures surface even in progress bar and quiet modes.
	switch status {
	case converter.StatusFailed, converter.StatusTimedOut:
		h.logger.Error("Conversion failed", slog.String("path", path), slog.String("error", message))
	case converter.StatusRejected:
		h.logger.Warn("File rejected", slog.String("path", path), slog.String("reason", message))
	}
	return nil
}

func (h *CLIHooks) logVerbose(path string, status converter.Status, message string, duration time.Duration) {
	level := slog.LevelDebug
	msg := "File status updated"
	attrs := []any{
		slog.String("path", path),
		slog.String("status", string(status)),
	}
	if duration > 0 {
		attrs = append(attrs, slog.Duration("duration", duration))
	}
	if message != "" {
		key := "message"
		if status == converter.StatusFailed || status == converter.StatusTimedOut {
			key = "error"
		}
		attrs = append(attrs, slog.String(key, message))
	}
	switch status {
	case converter.StatusSuccess:
		level = slog.LevelInfo
		msg = "File converted"
	case converter.StatusFailed, converter.StatusTimedOut:
		level = slog.LevelError
		msg = "Conversion failed"
	case converter.StatusRejected:
		level = slog.LevelWarn
		msg = "File rejected"
	}
	h.logger.Log(nil, level, msg, attrs...)
}

// OnRunComplete finalizes the active presentation mode. The text/JSON
// summary itself is rendered by the cli package after Run returns.
func (h *CLIHooks) OnRunComplete(report converter.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
		return nil
	}
	if h.barActive {
		h.mu.Lock()
		_ = h.progressBar.Close()
		h.mu.Unlock()
		// Newline so the shell prompt does not overlap the finished bar.
		_, _ = fmt.Fprintf(os.Stderr, "\n")
	}
	return nil
}
