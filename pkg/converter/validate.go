package converter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ValidationOutcome is the result of validating one candidate path. Created
// by the FileValidator and consumed immediately by the engine; never
// persisted.
type ValidationOutcome struct {
	Valid   bool
	Kind    ErrorKind
	Message string
}

// Magic-byte signatures keyed by extension. A .docx is a ZIP archive (OOXML
// package); a legacy .doc is an OLE2 compound file. Extensions without an
// entry skip the signature check, matching the permissive handling of
// unknown-but-configured formats.
var fileSignatures = map[string][]byte{
	".docx": {0x50, 0x4B, 0x03, 0x04},
	".doc":  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
}

// FileValidator checks a single candidate path against format, size and
// integrity rules. Read-only: it opens at most the file header. Deterministic
// for a given path and filesystem state.
type FileValidator struct {
	maxFileSize int64
	extensions  map[string]struct{}
	logger      *slog.Logger
}

// NewFileValidator builds a validator for the given extension set (matched
// case-insensitively) and size ceiling.
func NewFileValidator(maxFileSize int64, extensions []string, handler slog.Handler) *FileValidator {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	return &FileValidator{
		maxFileSize: maxFileSize,
		extensions:  extSet,
		logger:      slog.New(handler).With(slog.String("component", "validator")),
	}
}

// Validate runs the checks in fixed order, short-circuiting on the first
// failure: existence/readability, extension membership, size, content
// signature.
func (v *FileValidator) Validate(path string) ValidationOutcome {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return reject(KindPermissionDenied, fmt.Sprintf("no read permission: %s", path))
		}
		return reject(KindNotFound, fmt.Sprintf("file not found: %s", path))
	}
	if !info.Mode().IsRegular() {
		return reject(KindNotFound, fmt.Sprintf("not a regular file: %s", path))
	}

	f, err := os.Open(path)
	if err != nil {
		return reject(KindPermissionDenied, fmt.Sprintf("no read permission: %s", path))
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := v.extensions[ext]; !ok {
		return reject(KindUnsupportedFormat, fmt.Sprintf("unsupported extension: %q", ext))
	}

	if info.Size() > v.maxFileSize {
		return reject(KindTooLarge, fmt.Sprintf("file too large: %.1f MiB (limit %.1f MiB)",
			float64(info.Size())/(1024*1024), float64(v.maxFileSize)/(1024*1024)))
	}

	if sig, ok := fileSignatures[ext]; ok {
		header := make([]byte, len(sig))
		if _, err := io.ReadFull(f, header); err != nil {
			return reject(KindCorruptOrMismatch, fmt.Sprintf("file shorter than %s signature", ext))
		}
		if !bytes.Equal(header, sig) {
			return reject(KindCorruptOrMismatch, fmt.Sprintf("content does not match %s signature", ext))
		}
	}

	v.logger.Debug("File validated", slog.String("path", path), slog.Int64("size", info.Size()))
	return ValidationOutcome{Valid: true}
}

func reject(kind ErrorKind, msg string) ValidationOutcome {
	return ValidationOutcome{Valid: false, Kind: kind, Message: msg}
}
