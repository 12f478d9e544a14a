package converter

import "fmt"

// Status defines the processing states of a candidate file during a batch run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timedout"
	StatusRejected   Status = "rejected"
)

// IsFinal reports whether the status is terminal for a file.
func (s Status) IsFinal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusTimedOut, StatusRejected:
		return true
	}
	return false
}

// ErrorKind classifies why a candidate was rejected by validation or why a
// conversion job did not succeed. Validation kinds never reach the worker
// pool; execution kinds are only ever produced as JobResult statuses.
type ErrorKind string

const (
	// Validation-time kinds.
	KindNotFound          ErrorKind = "NotFound"
	KindPermissionDenied  ErrorKind = "PermissionDenied"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindTooLarge          ErrorKind = "TooLarge"
	KindCorruptOrMismatch ErrorKind = "CorruptOrMismatched"

	// Execution-time kinds.
	KindConversionError   ErrorKind = "ConversionError"
	KindTimedOut          ErrorKind = "TimedOut"
	KindOutputWriteFailed ErrorKind = "OutputWriteFailed"
)

// Quality is the rendering fidelity/time tradeoff passed to the conversion
// collaborator.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality validates a quality string from config or flags.
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityLow, QualityMedium, QualityHigh:
		return Quality(s), nil
	}
	return "", fmt.Errorf("%w: unknown quality %q (expected low, medium or high)", ErrConfigValidation, s)
}

// OutputFormat selects the format of the final summary printed to stdout.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)
