package organizer

import (
	"os"
	"path/filepath"

	"kura/internal/classify"
	"kura/internal/logging"
)

// Audit lists sensitive leaves that lack the privacy marker.
func (o *Organizer) Audit() ([]string, error) {
	var missing []string
	for _, kind := range classify.Kinds() {
		branch := filepath.Join(o.root, kind.String(), SensitiveDir)
		subs, err := readDirs(branch)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			leaf := filepath.Join(branch, sub)
			if _, err := os.Stat(filepath.Join(leaf, MarkerName)); err != nil {
				if !os.IsNotExist(err) {
					return nil, err
				}
				missing = append(missing, leaf)
			}
		}
	}
	return missing, nil
}

// Repair stamps each directory with the privacy marker and returns how many
// markers were written.
func (o *Organizer) Repair(dirs []string) (int, error) {
	written := 0
	for _, dir := range dirs {
		created, err := ensureMarker(dir)
		if err != nil {
			return written, err
		}
		if created {
			written++
			o.logger.Info("privacy marker restored",
				logging.String("path", dir),
				logging.String(logging.FieldEventType, "privacy_marker_restored"),
			)
		}
	}
	return written, nil
}
