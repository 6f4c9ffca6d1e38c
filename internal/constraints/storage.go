package constraints

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// StorageGate holds jobs while the filesystem holding Path has less than
// MinFreeBytes available, then defers to Inner.
type StorageGate struct {
	Inner        Gate
	Path         string
	MinFreeBytes int64

	freeBytes func(path string) (int64, error)
}

// NewStorageGate wraps inner with a free-space check. A nil inner gate is
// treated as Always.
func NewStorageGate(inner Gate, path string, minFreeBytes int64) *StorageGate {
	if inner == nil {
		inner = Always
	}
	return &StorageGate{Inner: inner, Path: path, MinFreeBytes: minFreeBytes, freeBytes: FreeBytes}
}

// Satisfied implements Gate.
func (g *StorageGate) Satisfied(ctx context.Context, set Set) (bool, string) {
	if g.MinFreeBytes > 0 {
		free := g.freeBytes
		if free == nil {
			free = FreeBytes
		}
		avail, err := free(g.Path)
		if err != nil {
			return false, "free space unavailable: " + err.Error()
		}
		if avail < g.MinFreeBytes {
			return false, fmt.Sprintf("waiting for free space (%s available)", humanize.IBytes(uint64(max(avail, 0))))
		}
	}
	return g.Inner.Satisfied(ctx, set)
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path. Missing path components are skipped so the
// check works before the library root exists.
func FreeBytes(path string) (int64, error) {
	dir := filepath.Clean(path)
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return 0, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
