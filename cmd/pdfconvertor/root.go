package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fclaiba/PDFConvertor/internal/cli"
	"github.com/fclaiba/PDFConvertor/internal/cli/config"
	"github.com/fclaiba/PDFConvertor/internal/convert"
	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

var (
	// Set at build time via -ldflags.
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile string
)

// Exit codes: 0 full success, 1 partial failure, 2 fatal error.
const (
	exitPartialFailure = 1
	exitFatal          = 2
)

var rootCmd = &cobra.Command{
	Use:   "pdfconvertor [flags] <input>...",
	Short: "Batch converts .doc and .docx documents to PDF.",
	Long: `pdfconvertor discovers Word documents across files and directories,
validates them, and converts them to PDF in parallel.

It features:
  - Parallel conversion with a bounded worker pool.
  - Pre-flight validation (existence, extension, size, file signature).
  - Per-file timeouts so one stuck document never stalls the batch.
  - A LibreOffice subprocess backend or a remote Gotenberg service.
  - An interactive terminal UI and machine-readable JSON/YAML reports.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg, logger, err := config.LoadAndValidate(cfgFile, version, cmd.Flags(), args)
		if err != nil {
			return err
		}

		return cli.Run(ctx, cfg, logger)
	},
}

// Execute runs the root command and maps its outcome to an exit code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, cli.ErrPartialFailure) {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			os.Exit(exitPartialFailure)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFatal)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default searches ., $HOME/.config/pdfconvertor/)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	rootCmd.Flags().StringP("output", "o", converter.DefaultOutputDir, "Output directory for produced PDFs")
	rootCmd.Flags().BoolP("recursive", "r", converter.DefaultRecursive, "Recurse into subdirectories of directory inputs")
	rootCmd.Flags().StringSlice("ext", converter.DefaultSupportedExtensions(), "Accepted input extensions")
	rootCmd.Flags().Int64("max-file-size", converter.DefaultMaxFileSizeBytes, "Maximum input file size in bytes")

	rootCmd.Flags().IntP("workers", "w", 0, "Number of parallel conversion workers (0 for auto)")
	rootCmd.Flags().Int("timeout", int(converter.DefaultJobTimeout.Seconds()), "Per-file conversion timeout in seconds")
	rootCmd.Flags().StringP("quality", "q", string(converter.DefaultQuality), `Output quality ("low", "medium", "high")`)

	rootCmd.Flags().String("engine", convert.EngineSoffice, `Conversion backend ("soffice" or "gotenberg")`)
	rootCmd.Flags().String("gotenberg-url", "", "Base URL of the Gotenberg service (required with --engine=gotenberg)")

	rootCmd.Flags().BoolP("force", "f", false, "Convert even if the output directory already contains PDFs")
	rootCmd.Flags().Bool("no-tui", false, "Disable interactive terminal UI even on a TTY")
	rootCmd.Flags().String("output-format", string(converter.DefaultOutputFormat), `Final summary format ("text", "json")`)
	rootCmd.Flags().String("report", "", "Write the full structured report to this file")
	rootCmd.Flags().String("report-format", "json", `Report file format ("json", "yaml")`)
}
