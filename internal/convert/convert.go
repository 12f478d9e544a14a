// Package convert provides the DocumentConverter implementations consumed by
// the batch engine: a headless LibreOffice subprocess and a remote Gotenberg
// service. Both honor context cancellation so the engine can enforce per-job
// timeouts and hard stops.
package convert

import (
	"fmt"
	"log/slog"

	"github.com/fclaiba/PDFConvertor/pkg/converter"
)

// Engine names accepted by config.
const (
	EngineSoffice   = "soffice"
	EngineGotenberg = "gotenberg"
)

// New builds the converter selected by name.
func New(engine, gotenbergURL string, handler slog.Handler) (converter.DocumentConverter, error) {
	switch engine {
	case EngineSoffice, "":
		return NewSofficeConverter(handler), nil
	case EngineGotenberg:
		if gotenbergURL == "" {
			return nil, fmt.Errorf("%w: gotenbergURL is required for the gotenberg engine", converter.ErrConfigValidation)
		}
		return NewGotenbergConverter(gotenbergURL, handler), nil
	}
	return nil, fmt.Errorf("%w: unknown conversion engine %q (expected %s or %s)",
		converter.ErrConfigValidation, engine, EngineSoffice, EngineGotenberg)
}
