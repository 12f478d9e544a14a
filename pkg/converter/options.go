package converter

import (
	"context"
	"log/slog"
	"time"
)

// DocumentConverter is the contract consumed by the engine for the actual
// per-document conversion. Implementations must honor ctx cancellation and
// deadlines: when ctx expires the implementation must abandon (and, for
// subprocess-based converters, kill) the conversion and return promptly.
// Implementations are called concurrently and must be safe for concurrent
// use; each call owns its input/output pair exclusively.
type DocumentConverter interface {
	Convert(ctx context.Context, inputPath, outputPath string, quality Quality) error
}

// ConverterFunc adapts a plain function to the DocumentConverter interface.
type ConverterFunc func(ctx context.Context, inputPath, outputPath string, quality Quality) error

// Convert implements DocumentConverter.
func (f ConverterFunc) Convert(ctx context.Context, inputPath, outputPath string, quality Quality) error {
	return f(ctx, inputPath, outputPath, quality)
}

// Hooks defines callbacks for status updates during a batch run.
// Implementations MUST be thread-safe as methods are called concurrently
// from worker goroutines. The engine ignores hook errors; they are logged
// at warn level only.
type Hooks interface {
	OnFileDiscovered(path string) error
	OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks is the default, do-nothing Hooks implementation.
type NoOpHooks struct{}

func (h *NoOpHooks) OnFileDiscovered(path string) error { return nil }

func (h *NoOpHooks) OnFileStatusUpdate(path string, status Status, message string, duration time.Duration) error {
	return nil
}

func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// Options holds all configuration for one batch run.
type Options struct {
	// Inputs are the file and/or directory paths to process.
	Inputs []string `mapstructure:"inputs"`
	// OutputDir receives every produced PDF. Created by the engine before
	// dispatch; workers never create directories.
	OutputDir string `mapstructure:"outputDir"`
	// Recursive expands directories into their subdirectories as well.
	Recursive bool `mapstructure:"recursive"`

	// SupportedExtensions is the case-insensitive set of accepted input
	// extensions, each including the leading dot.
	SupportedExtensions []string `mapstructure:"supportedExtensions"`
	// MaxFileSizeBytes rejects larger inputs with TooLarge.
	MaxFileSizeBytes int64 `mapstructure:"maxFileSizeBytes"`

	// Workers bounds the conversion pool. 0 selects an automatic count based
	// on batch size and available cores.
	Workers int `mapstructure:"maxWorkers"`
	// PerJobTimeoutSeconds is the wall-clock budget per job, restarted fresh
	// for each job. JobTimeout is derived from it during config loading.
	PerJobTimeoutSeconds int           `mapstructure:"perJobTimeoutSeconds"`
	JobTimeout           time.Duration `mapstructure:"-"`

	// Quality is forwarded to the conversion collaborator.
	Quality Quality `mapstructure:"outputQuality"`

	// ForceOverwrite skips the non-empty output directory guard in the CLI.
	ForceOverwrite bool `mapstructure:"force"`
	// OutputFormat selects the final stdout summary format.
	OutputFormat OutputFormat `mapstructure:"outputFormat"`
	// ReportFile, when set, receives the full structured report.
	ReportFile string `mapstructure:"reportFile"`
	// ReportFormat is "json" or "yaml".
	ReportFormat string `mapstructure:"reportFormat"`

	Verbose    bool `mapstructure:"verbose"`
	TuiEnabled bool `mapstructure:"-"`

	// ConfigFilePath records the loaded config file for reporting.
	ConfigFilePath string `mapstructure:"-"`
	// AppVersion is populated by the caller from build metadata.
	AppVersion string `mapstructure:"-"`

	// Injected dependencies.
	Converter  DocumentConverter `mapstructure:"-"` // Required: conversion collaborator
	EventHooks Hooks             `mapstructure:"-"` // Optional: NoOpHooks when nil
	Logger     slog.Handler      `mapstructure:"-"` // Required: logging backend
}
