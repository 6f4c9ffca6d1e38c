package preflight

import (
	"context"

	"kura/internal/config"
	"kura/internal/organizer"
	"kura/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes every applicable check. store and org may be nil, in
// which case their checks are skipped.
func RunAll(ctx context.Context, cfg *config.Config, store *queue.Store, org *organizer.Organizer) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Library root and state directory (always checked)
	results = append(results, CheckDirectoryAccess("Library root", cfg.Paths.LibraryRoot))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Constraints.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.LibraryRoot, cfg.Constraints.MinFreeMiB<<20))
	}

	if store != nil {
		results = append(results, CheckDatabase(ctx, store))
	}

	if org != nil {
		results = append(results, CheckPrivacyMarkers(org))
	}

	return results
}
