package catalog

import (
	"strconv"
	"strings"
)

// Entry is one catalog item. Empty strings and nil pointers mean absent.
type Entry struct {
	ID       *int64   `json:"id,omitempty"`
	Title    string   `json:"title,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
	KindCode *int     `json:"kindCode,omitempty"`
	Genres   string   `json:"genres,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Int64 returns a pointer to v for building entries.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v for building entries.
func Int(v int) *int { return &v }

// Key returns the deduplication key. Entries without an ID have none.
func (e Entry) Key() (string, bool) {
	if e.ID == nil {
		return "", false
	}
	return "id:" + strconv.FormatInt(*e.ID, 10), true
}

// IDString renders the ID for file names and display; "0" when absent.
func (e Entry) IDString() string {
	if e.ID == nil {
		return "0"
	}
	return strconv.FormatInt(*e.ID, 10)
}

// DisplayTitle is the title used in status text.
func (e Entry) DisplayTitle() string {
	if t := strings.TrimSpace(e.Title); t != "" {
		return t
	}
	return "entry " + e.IDString()
}

// Clone returns a deep copy that shares no memory with e.
func (e Entry) Clone() Entry {
	out := e
	if e.ID != nil {
		out.ID = Int64(*e.ID)
	}
	if e.KindCode != nil {
		out.KindCode = Int(*e.KindCode)
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

// Equal compares the fields that identify an entry's content.
func (e Entry) Equal(o Entry) bool {
	if !equalPtr(e.ID, o.ID) || !equalPtr(e.KindCode, o.KindCode) {
		return false
	}
	if e.Title != o.Title || e.ImageURL != o.ImageURL || e.Genres != o.Genres {
		return false
	}
	if len(e.Tags) != len(o.Tags) {
		return false
	}
	for i := range e.Tags {
		if e.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Downloadable drops entries that have no image reference. Callers filter
// before enqueueing; the scheduler accepts whatever it is given.
func Downloadable(entries []Entry) ([]Entry, int) {
	keep := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.ImageURL) == "" {
			continue
		}
		keep = append(keep, e)
	}
	return keep, len(entries) - len(keep)
}
