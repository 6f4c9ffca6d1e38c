package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"kura/internal/constraints"
	"kura/internal/organizer"
	"kura/internal/queue"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available.
func CheckFreeSpace(name, path string, minBytes int64) Result {
	return checkFreeSpace(name, path, minBytes, constraints.FreeBytes)
}

func checkFreeSpace(name, path string, minBytes int64, free func(string) (int64, error)) Result {
	avail, err := free(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s available, %s required", humanize.IBytes(uint64(max(avail, 0))), humanize.IBytes(uint64(minBytes)))
	if avail < minBytes {
		return Result{Name: name, Detail: detail}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDatabase runs the job database health check.
func CheckDatabase(ctx context.Context, store *queue.Store) Result {
	const name = "Job database"

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	switch {
	case !health.DatabaseReadable:
		return Result{Name: name, Detail: "database unreadable: " + health.Error}
	case len(health.MissingTables) > 0:
		return Result{Name: name, Detail: "missing tables: " + strings.Join(health.MissingTables, ", ")}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("schema v%d, %d job(s)", health.SchemaVersion, health.TotalJobs),
	}
}

// CheckPrivacyMarkers verifies that every sensitive folder carries the
// marker that hides it from media scanners.
func CheckPrivacyMarkers(org *organizer.Organizer) Result {
	const name = "Privacy markers"

	missing, err := org.Audit()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("audit failed (%v)", err)}
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d folder(s) missing %s; run kura doctor --repair", len(missing), organizer.MarkerName)}
	}
	return Result{Name: name, Passed: true, Detail: "all sensitive folders marked"}
}
