package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"kura/internal/catalog"
)

// FormatVersion identifies the record layout written by this package.
const FormatVersion = 1

// Record is the full-fidelity payload embedded into every image.
type Record struct {
	Version     int       `json:"formatVersion"`
	ID          *int64    `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	KindCode    *int      `json:"kindCode,omitempty"`
	Genres      string    `json:"genres,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
}

var (
	errEmptyRecord   = errors.New("empty metadata record")
	errRecordVersion = errors.New("unsupported metadata record version")
)

// NewRecord captures e at the given processing time.
func NewRecord(e catalog.Entry, processedAt time.Time) Record {
	c := e.Clone()
	return Record{
		Version:     FormatVersion,
		ID:          c.ID,
		Title:       c.Title,
		ImageURL:    c.ImageURL,
		KindCode:    c.KindCode,
		Genres:      c.Genres,
		ProcessedAt: processedAt.UTC(),
	}
}

// Entry rebuilds the catalog entry described by r.
func (r Record) Entry() catalog.Entry {
	return catalog.Entry{
		ID:       r.ID,
		Title:    r.Title,
		ImageURL: r.ImageURL,
		KindCode: r.KindCode,
		Genres:   r.Genres,
	}.Clone()
}

// Marshal encodes r as JSON with every non-ASCII rune escaped, so the
// payload fits tag slots that are nominally ASCII.
func (r Record) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return asciiEscape(data), nil
}

// ParseRecord decodes a record and rejects empty, malformed or unknown-version
// payloads.
func ParseRecord(data []byte) (Record, error) {
	data = bytes.TrimRight(bytes.TrimSpace(data), "\x00")
	if len(data) == 0 {
		return Record{}, errEmptyRecord
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode metadata record: %w", err)
	}
	if r.Version != FormatVersion {
		return Record{}, fmt.Errorf("%w: %d", errRecordVersion, r.Version)
	}
	return r, nil
}

// asciiEscape rewrites non-ASCII runes as \u escapes. JSON only carries them
// inside strings, where the escape is equivalent.
func asciiEscape(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r < utf8.RuneSelf {
			buf.WriteByte(byte(r))
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			writeEscape(&buf, r1)
			writeEscape(&buf, r2)
			continue
		}
		writeEscape(&buf, r)
	}
	return buf.Bytes()
}

func writeEscape(buf *bytes.Buffer, r rune) {
	hex := strconv.FormatInt(int64(r), 16)
	buf.WriteString(`\u`)
	for i := len(hex); i < 4; i++ {
		buf.WriteByte('0')
	}
	buf.WriteString(hex)
}
