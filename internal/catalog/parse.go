package catalog

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyCatalog is returned for empty input.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Parse decodes a catalog export. Supported shapes are a JSON array of
// entries, a JSON object with an "entries" array, and an XML document whose
// root holds <entry> elements. Either every entry parses or none is returned.
func Parse(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyCatalog
	}
	switch trimmed[0] {
	case '[':
		var raw []rawEntry
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("parse json catalog: %w", err)
		}
		return convert(raw)
	case '{':
		var doc struct {
			Entries []rawEntry `json:"entries"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse json catalog: %w", err)
		}
		return convert(doc.Entries)
	case '<':
		var doc xmlCatalog
		if err := xml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse xml catalog: %w", err)
		}
		raw := make([]rawEntry, 0, len(doc.Entries))
		for _, x := range doc.Entries {
			raw = append(raw, x.raw())
		}
		return convert(raw)
	default:
		return nil, fmt.Errorf("parse catalog: unrecognized format starting with %q", trimmed[0])
	}
}

func convert(raw []rawEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(raw))
	for i, r := range raw {
		entry, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// rawEntry tolerates the loose typing found in exports: numeric fields may be
// strings and genres may be a list.
type rawEntry struct {
	ID       json.RawMessage `json:"id"`
	Title    string          `json:"title"`
	ImageURL string          `json:"imageUrl"`
	KindCode json.RawMessage `json:"kindCode"`
	Genres   json.RawMessage `json:"genres"`
	Tags     []string        `json:"tags"`
}

func (r rawEntry) entry() (Entry, error) {
	e := Entry{
		Title:    strings.TrimSpace(r.Title),
		ImageURL: strings.TrimSpace(r.ImageURL),
		Tags:     r.Tags,
	}
	id, err := parseNumber(r.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("id: %w", err)
	}
	e.ID = id
	kind, err := parseNumber(r.KindCode)
	if err != nil {
		return Entry{}, fmt.Errorf("kindCode: %w", err)
	}
	if kind != nil {
		e.KindCode = Int(int(*kind))
	}
	genres, err := parseGenres(r.Genres)
	if err != nil {
		return Entry{}, fmt.Errorf("genres: %w", err)
	}
	e.Genres = genres
	return e, nil
}

func parseNumber(raw json.RawMessage) (*int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return nil, nil
		}
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %s", text)
	}
	return &v, nil
}

func parseGenres(raw json.RawMessage) (string, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "", nil
	}
	if strings.HasPrefix(text, "[") {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(list))
		for _, g := range list {
			if g = strings.TrimSpace(g); g != "" {
				parts = append(parts, g)
			}
		}
		return strings.Join(parts, ", "), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

type xmlCatalog struct {
	Entries []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	ID       string   `xml:"id"`
	Title    string   `xml:"title"`
	ImageURL string   `xml:"imageUrl"`
	KindCode string   `xml:"kindCode"`
	Genres   string   `xml:"genres"`
	Tags     []string `xml:"tags>tag"`
}

func (x xmlEntry) raw() rawEntry {
	return rawEntry{
		ID:       quoteRaw(x.ID),
		Title:    x.Title,
		ImageURL: x.ImageURL,
		KindCode: quoteRaw(x.KindCode),
		Genres:   quoteRaw(x.Genres),
		Tags:     x.Tags,
	}
}

func quoteRaw(s string) json.RawMessage {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	b, _ := json.Marshal(s)
	return b
}
