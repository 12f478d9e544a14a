package converter

import "errors"

// Exported error variables. Library users can check against these using
// errors.Is. Per-file conditions never surface through these: they resolve
// into ValidationOutcomes or JobResults instead.
var (
	// ErrConfigValidation indicates the provided Options failed validation
	// checks performed by NewEngine. Always fatal.
	ErrConfigValidation = errors.New("invalid configuration options provided")

	// ErrOutputDirCreate indicates the output directory could not be created
	// before dispatch. One of the two fatal, batch-aborting conditions; the
	// other is loss of the result-collection channel, an internal invariant
	// violation.
	ErrOutputDirCreate = errors.New("failed to create output directory")

	// ErrOutputWrite marks a converter failure caused by writing the produced
	// PDF rather than by the conversion itself. DocumentConverter
	// implementations wrap it so the engine classifies the JobResult as
	// OutputWriteFailed.
	ErrOutputWrite = errors.New("failed to write output file")
)
