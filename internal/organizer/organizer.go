package organizer

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"kura/internal/catalog"
	"kura/internal/classify"
	"kura/internal/logging"
	"kura/internal/services"
	"kura/internal/textutil"
)

const (
	// SensitiveDir is the branch directory holding sensitive subcategories.
	SensitiveDir = "SENSITIVE"
	// MarkerName is the privacy marker that hides a directory from media scanners.
	MarkerName = ".nomedia"
)

// Target is the resolved placement of one entry.
type Target struct {
	Path        string
	Kind        classify.Kind
	Sensitive   bool
	Subcategory string
	Genre       string
}

// Organizer resolves and maintains folders under a library root.
type Organizer struct {
	root       string
	classifier *classify.Classifier
	logger     *slog.Logger
}

// New constructs an organizer rooted at root.
func New(root string, classifier *classify.Classifier, logger *slog.Logger) *Organizer {
	if classifier == nil {
		classifier = classify.New(classify.DefaultPolicy())
	}
	return &Organizer{
		root:       filepath.Clean(root),
		classifier: classifier,
		logger:     logging.NewComponentLogger(logger, "organizer"),
	}
}

// Root returns the library root.
func (o *Organizer) Root() string {
	return o.root
}

// Classifier returns the classifier used for placement.
func (o *Organizer) Classifier() *classify.Classifier {
	return o.classifier
}

// Target computes where e belongs without touching the filesystem.
func (o *Organizer) Target(e catalog.Entry) Target {
	res := o.classifier.Classify(e)
	t := Target{Kind: res.Kind, Sensitive: res.Sensitive}
	branch := filepath.Join(o.root, res.Kind.String())
	if res.Sensitive {
		t.Subcategory = textutil.Sanitize(res.Subcategory)
		t.Path = filepath.Join(branch, SensitiveDir, t.Subcategory)
		return t
	}
	t.Genre = PrimaryGenre(e.Genres)
	t.Path = filepath.Join(branch, t.Genre)
	return t
}

// ResolveFolder creates the target directory for e if needed and returns it.
// Sensitive leaves are stamped with the privacy marker before returning.
func (o *Organizer) ResolveFolder(e catalog.Entry) (string, error) {
	t := o.Target(e)
	_, statErr := os.Stat(t.Path)
	existed := statErr == nil
	if err := os.MkdirAll(t.Path, 0o755); err != nil {
		return "", services.Wrap(services.ErrFatal, "organizing", "create folder", "Failed to create library folder", err)
	}
	if !t.Sensitive {
		return t.Path, nil
	}
	created, err := ensureMarker(t.Path)
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "organizing", "write privacy marker", "Failed to stamp sensitive folder", err)
	}
	if created && existed {
		o.logger.Warn("sensitive folder was missing its privacy marker",
			logging.String("path", t.Path),
			logging.String(logging.FieldEventType, "privacy_marker_restored"),
			logging.String(logging.FieldErrorHint, "run kura doctor to audit the library"),
			logging.String(logging.FieldImpact, "folder was visible to media scanners"),
		)
	}
	return t.Path, nil
}

// PrimaryGenre returns the first non-empty genre token split on , ; or |,
// sanitized. Absent genres yield "Unknown".
func PrimaryGenre(genres string) string {
	tokens := strings.FieldsFunc(genres, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		genre := textutil.Sanitize(token)
		// A genre literally named like the sensitive branch would nest
		// ordinary images inside it.
		if strings.EqualFold(genre, SensitiveDir) {
			return textutil.FallbackSegment
		}
		return genre
	}
	return textutil.FallbackSegment
}

// ensureMarker creates the marker exclusively. It reports whether this call
// created it; an existing marker is not an error.
func ensureMarker(dir string) (bool, error) {
	f, err := os.OpenFile(filepath.Join(dir, MarkerName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, f.Close()
}
