package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

const maxStderrReport = 1024

// SofficeConverter converts documents with a headless LibreOffice
// subprocess. The subprocess is the isolation boundary: a crash or hang
// inside LibreOffice terminates (or is killed with) the child process only,
// and exec.CommandContext kills it when the job context expires.
//
// Each conversion runs with its own temporary --outdir because soffice
// derives the output name from the input stem; the produced file is then
// moved to the engine-assigned output path.
type SofficeConverter struct {
	// Binary is the soffice executable, resolved via PATH by default.
	Binary string
	// Verify controls post-conversion structural validation of the PDF.
	Verify bool
	logger *slog.Logger
}

// NewSofficeConverter returns a converter using the "soffice" binary with
// output verification enabled.
func NewSofficeConverter(handler slog.Handler) *SofficeConverter {
	return &SofficeConverter{
		Binary: "soffice",
		Verify: true,
		logger: slog.New(handler).With(slog.String("component", "soffice")),
	}
}

// Convert implements converter.DocumentConverter.
func (c *SofficeConverter) Convert(ctx context.Context, inputPath, outputPath string, quality converter.Quality) error {
	tmpDir, err := os.MkdirTemp("", "pdfconvertor-*")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	args := []string{
		"--headless", "--invisible", "--norestore",
		"--convert-to", exportFilter(quality),
		"--outdir", tmpDir,
		inputPath,
	}
	cmd := exec.CommandContext(ctx, c.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	c.logger.Debug("Invoking soffice", slog.String("input", inputPath), slog.String("quality", string(quality)))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Killed by timeout or hard stop; the engine classifies this.
			return ctx.Err()
		}
		return fmt.Errorf("soffice failed for %s: %w: %s", inputPath, err, trimStderr(stderr.String()))
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(tmpDir, stem+converter.PDFExtension)
	if _, err := os.Stat(produced); err != nil {
		return fmt.Errorf("soffice produced no output for %s: %s", inputPath, trimStderr(stderr.String()))
	}

	if err := moveFile(produced, outputPath); err != nil {
		return fmt.Errorf("%w: %v", converter.ErrOutputWrite, err)
	}

	if c.Verify {
		if err := api.ValidateFile(outputPath, nil); err != nil {
			os.Remove(outputPath)
			return fmt.Errorf("output failed PDF validation: %w", err)
		}
		if pages, err := api.PageCountFile(outputPath); err == nil {
			c.logger.Debug("Output verified", slog.String("output", outputPath), slog.Int("pages", pages))
		}
	}
	return nil
}

// exportFilter maps a quality level onto the writer_pdf_Export filter string.
// Low and medium downsample images; high preserves resolution at JPEG
// quality 95.
func exportFilter(quality converter.Quality) string {
	switch quality {
	case converter.QualityLow:
		return `pdf:writer_pdf_Export:{"Quality":{"type":"long","value":"50"},"ReduceImageResolution":{"type":"boolean","value":"true"},"MaxImageResolution":{"type":"long","value":"75"}}`
	case converter.QualityMedium:
		return `pdf:writer_pdf_Export:{"Quality":{"type":"long","value":"80"},"ReduceImageResolution":{"type":"boolean","value":"true"},"MaxImageResolution":{"type":"long","value":"150"}}`
	default:
		return `pdf:writer_pdf_Export:{"Quality":{"type":"long","value":"95"}}`
	}
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystems (the temp dir is often on a different mount than the output
// directory).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrReport {
		s = s[:maxStderrReport] + "... (truncated)"
	}
	if s == "" {
		return "(no stderr)"
	}
	return s
}
