package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"kura/internal/catalog"
	"kura/internal/classify"
)

// ErrUnsupportedFormat is returned for files that are neither JPEG nor PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format for metadata")

// DefaultSoftware is the software identifier written when none is configured.
const DefaultSoftware = "kura"

// Tag names reported by Verify.
const (
	TagDescription = "description"
	TagSoftware    = "software"
	TagKind        = "kind"
	TagGenres      = "genres"
	TagRecord      = "record"
)

// Codec embeds and extracts metadata records.
type Codec struct {
	Software string
	Now      func() time.Time
}

// NewCodec returns a codec stamping software as the writer identifier.
func NewCodec(software string) *Codec {
	return &Codec{Software: software, Now: time.Now}
}

// Report summarizes the tags found in a file.
type Report struct {
	Description bool
	Record      bool
	Tags        map[string]string
}

// OK reports whether both the description and the full-fidelity record are
// present.
func (r Report) OK() bool {
	return r.Description && r.Record
}

type format int

const (
	formatUnknown format = iota
	formatJPEG
	formatPNG
)

type tagSet struct {
	description string
	software    string
	kind        string
	genres      string
	record      []byte
}

// Embed writes the human tags and the full-fidelity record for e into the
// image at path, replacing any tags from an earlier embed.
func (c *Codec) Embed(path string, e catalog.Entry) error {
	f, err := sniff(path)
	if err != nil {
		return err
	}
	record, err := NewRecord(e, c.now()).Marshal()
	if err != nil {
		return fmt.Errorf("encode metadata record: %w", err)
	}
	tags := tagSet{
		description: e.DisplayTitle(),
		software:    c.software(),
		kind:        classify.KindLabel(e.KindCode),
		genres:      strings.TrimSpace(e.Genres),
		record:      record,
	}
	switch f {
	case formatJPEG:
		return embedJPEG(path, tags)
	case formatPNG:
		return embedPNG(path, tags)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Extract rebuilds the entry stored in the full-fidelity tag. It returns
// false when the tag is missing, empty or malformed.
func (c *Codec) Extract(path string) (catalog.Entry, bool) {
	rec, err := ReadRecord(path)
	if err != nil {
		return catalog.Entry{}, false
	}
	return rec.Entry(), true
}

// ReadRecord returns the decoded full-fidelity record of the image at path.
func ReadRecord(path string) (Record, error) {
	tags, err := readTags(path)
	if err != nil {
		return Record{}, err
	}
	return ParseRecord([]byte(tags[TagRecord]))
}

// Verify reports which tags are present and non-empty.
func (c *Codec) Verify(path string) (Report, error) {
	tags, err := readTags(path)
	if err != nil {
		return Report{}, err
	}
	report := Report{Tags: tags}
	report.Description = strings.TrimSpace(tags[TagDescription]) != ""
	report.Record = strings.TrimSpace(tags[TagRecord]) != ""
	return report, nil
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Codec) software() string {
	if s := strings.TrimSpace(c.Software); s != "" {
		return s
	}
	return DefaultSoftware
}

func readTags(path string) (map[string]string, error) {
	f, err := sniff(path)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatJPEG:
		return readJPEGTags(path)
	case formatPNG:
		return readPNGTags(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// sniff decides the container from the leading bytes rather than the
// extension, since names may come from a fallback.
func sniff(path string) (format, error) {
	file, err := os.Open(path)
	if err != nil {
		return formatUnknown, err
	}
	defer file.Close()
	head := make([]byte, len(pngSignature))
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return formatUnknown, err
	}
	head = head[:n]
	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return formatJPEG, nil
	case bytes.Equal(head, pngSignature):
		return formatPNG, nil
	default:
		return formatUnknown, nil
	}
}
