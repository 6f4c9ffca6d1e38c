package organizer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"kura/internal/logging"
)

// CleanupResult contains the outcome of a folder cleanup.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Cleanup removes, deepest first, every directory under the root that is
// empty or holds nothing but the privacy marker. The root itself is kept.
func (o *Organizer) Cleanup(ctx context.Context) CleanupResult {
	result := CleanupResult{}

	var dirs []string
	err := filepath.WalkDir(o.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == o.root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			return nil
		}
		if d.IsDir() && path != o.root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: o.root, Error: err})
		return result
	}

	// WalkDir is pre-order, so walking backwards visits children first.
	for i := len(dirs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: o.root, Error: ctx.Err()})
			break
		}
		dir := dirs[i]
		removable, err := onlyMarker(dir)
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			continue
		}
		if !removable {
			continue
		}
		if err := removeLeaf(dir); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			o.logger.Warn("failed to remove empty folder",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "folder_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check library_root permissions"),
				logging.String(logging.FieldImpact, "empty folder left in library"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
		o.logger.Info("removed empty folder",
			logging.String("path", dir),
			logging.String(logging.FieldEventType, "folder_cleanup"),
		)
	}
	return result
}

func onlyMarker(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	switch len(entries) {
	case 0:
		return true, nil
	case 1:
		return entries[0].Name() == MarkerName && entries[0].Type().IsRegular(), nil
	default:
		return false, nil
	}
}

func removeLeaf(dir string) error {
	if err := os.Remove(filepath.Join(dir, MarkerName)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Remove(dir)
}
