package converter

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is a filesystem path discovered for conversion, not yet
// validated. Immutable once discovered.
type Candidate struct {
	Path string // absolute
	Size int64
	Ext  string // lowercased, including dot
}

// Discoverer walks an input set of files and/or directories and produces the
// ordered candidate list. Directory traversal is lexicographic by path so
// batch runs are reproducible; explicit file arguments are yielded regardless
// of extension and left for validation to classify.
type Discoverer struct {
	extensions map[string]struct{}
	recursive  bool
	logger     *slog.Logger
}

// NewDiscoverer builds a discoverer filtering directory expansion by the
// given extension set.
func NewDiscoverer(extensions []string, recursive bool, handler slog.Handler) *Discoverer {
	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}
	return &Discoverer{
		extensions: extSet,
		recursive:  recursive,
		logger:     slog.New(handler).With(slog.String("component", "discoverer")),
	}
}

// Discover enumerates all candidates before returning, so progress totals are
// accurate up front. Nonexistent inputs are reported as zero-match warnings,
// never a fatal error. Duplicate paths (same file reached through two inputs)
// are yielded once. The only error returned is context cancellation.
func (d *Discoverer) Discover(ctx context.Context, inputs []string) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]struct{})

	add := func(absPath string, size int64) {
		if _, dup := seen[absPath]; dup {
			d.logger.Debug("Duplicate input skipped", slog.String("path", absPath))
			return
		}
		seen[absPath] = struct{}{}
		candidates = append(candidates, Candidate{
			Path: absPath,
			Size: size,
			Ext:  strings.ToLower(filepath.Ext(absPath)),
		})
	}

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		absInput, err := filepath.Abs(input)
		if err != nil {
			d.logger.Warn("Could not resolve input path", slog.String("path", input), slog.String("error", err.Error()))
			continue
		}
		info, err := os.Stat(absInput)
		if err != nil {
			d.logger.Warn("Input does not exist, skipping", slog.String("path", input))
			continue
		}

		if !info.IsDir() {
			add(absInput, info.Size())
			continue
		}

		if err := d.walkDir(ctx, absInput, add); err != nil {
			return candidates, err
		}
	}

	d.logger.Info("Discovery complete", slog.Int("candidates", len(candidates)))
	return candidates, nil
}

// walkDir expands one directory input. filepath.WalkDir visits entries in
// lexical order, which provides the deterministic traversal guarantee.
func (d *Discoverer) walkDir(ctx context.Context, root string, add func(string, int64)) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Warn("Error accessing path during walk", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			d.logger.Debug("Skipping symbolic link", slog.String("path", path))
			return nil
		}
		if entry.IsDir() {
			if !d.recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := d.extensions[ext]; !ok {
			return nil
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			d.logger.Warn("Could not stat file during walk", slog.String("path", path), slog.String("error", infoErr.Error()))
			return nil
		}
		add(path, info.Size())
		return nil
	})
}
