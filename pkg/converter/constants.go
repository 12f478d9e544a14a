package converter

import "time"

// Defaults for configuration options. Used when setting up Viper defaults in
// the configuration loading layer.
const (
	// DefaultMaxFileSizeBytes is the validation size ceiling (100 MiB).
	DefaultMaxFileSizeBytes int64 = 100 * 1024 * 1024
	// DefaultMaxWorkers is the worker pool size when not configured.
	// Conversion is CPU and memory heavy, so the engine additionally clamps
	// the pool to the number of available cores.
	DefaultMaxWorkers = 4
	// DefaultJobTimeout is the per-job wall-clock budget.
	DefaultJobTimeout = 300 * time.Second
	// DefaultQuality is the rendering quality passed to the converter.
	DefaultQuality = QualityHigh
	// DefaultRecursive controls directory expansion depth.
	DefaultRecursive = false
	// DefaultOutputDir is where PDFs land when no output directory is given.
	DefaultOutputDir = "./output"
	// DefaultOutputFormat is the format of the final stdout summary.
	DefaultOutputFormat = OutputFormatText

	// PDFExtension is the extension given to produced output files.
	PDFExtension = ".pdf"

	// ReportSchemaVersion identifies the JSON/YAML report structure.
	ReportSchemaVersion = "1.0"
)

// DefaultSupportedExtensions lists the input formats accepted out of the box.
func DefaultSupportedExtensions() []string {
	return []string{".doc", ".docx"}
}
