package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// GotenbergConverter converts documents through a Gotenberg instance's
// LibreOffice route. Isolation comes for free: the conversion runs in a
// separate service process, and the request context carries the job timeout.
type GotenbergConverter struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGotenbergConverter targets the Gotenberg service at baseURL. The HTTP
// client carries no timeout of its own; the per-job context governs.
func NewGotenbergConverter(baseURL string, handler slog.Handler) *GotenbergConverter {
	return &GotenbergConverter{
		baseURL: baseURL,
		client:  &http.Client{},
		logger:  slog.New(handler).With(slog.String("component", "gotenberg")),
	}
}

// Convert implements converter.DocumentConverter.
func (g *GotenbergConverter) Convert(ctx context.Context, inputPath, outputPath string, quality converter.Quality) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("files", filepath.Base(inputPath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy input into form: %w", err)
	}
	for field, value := range qualityFields(quality) {
		if err := writer.WriteField(field, value); err != nil {
			return fmt.Errorf("write form field %s: %w", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form writer: %w", err)
	}

	url := fmt.Sprintf("%s/forms/libreoffice/convert", g.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("gotenberg request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxStderrReport))
		return fmt.Errorf("gotenberg returned status %d: %s", resp.StatusCode, string(msg))
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", converter.ErrOutputWrite, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", converter.ErrOutputWrite, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: %v", converter.ErrOutputWrite, err)
	}

	g.logger.Debug("Gotenberg conversion complete", slog.String("input", inputPath), slog.String("output", outputPath))
	return nil
}

// qualityFields maps a quality level onto the LibreOffice route's image
// compression form fields. High quality sends no downsampling directives.
func qualityFields(quality converter.Quality) map[string]string {
	switch quality {
	case converter.QualityLow:
		return map[string]string{"quality": "50", "maxImageResolution": "75"}
	case converter.QualityMedium:
		return map[string]string{"quality": "80", "maxImageResolution": "150"}
	default:
		return map[string]string{"quality": "95"}
	}
}
