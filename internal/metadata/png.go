package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"

	"kura/internal/fileutil"
)

// PNG text keywords, one per tag.
var pngKeywords = map[string]string{
	TagDescription: "Description",
	TagSoftware:    "Software",
	TagKind:        "Kind",
	TagGenres:      "Genres",
	TagRecord:      "kura:record",
}

var errPNGStructure = errors.New("malformed png")

type pngChunk struct {
	kind string
	data []byte
}

func embedPNG(path string, tags tagSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	chunks, err := splitPNG(data)
	if err != nil {
		return err
	}

	ours := make(map[string]bool, len(pngKeywords))
	for _, kw := range pngKeywords {
		ours[kw] = true
	}
	fresh := []pngChunk{
		textChunk(pngKeywords[TagDescription], tags.description),
		textChunk(pngKeywords[TagSoftware], tags.software),
		textChunk(pngKeywords[TagKind], tags.kind),
		textChunk(pngKeywords[TagGenres], tags.genres),
		textChunk(pngKeywords[TagRecord], string(tags.record)),
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + 512)
	buf.Write(pngSignature)
	for _, c := range chunks {
		if c.kind == "iTXt" || c.kind == "tEXt" {
			if kw, _, ok := parseText(c); ok && ours[kw] {
				continue
			}
		}
		if c.kind == "IEND" {
			for _, f := range fresh {
				writeChunk(&buf, f)
			}
		}
		writeChunk(&buf, c)
	}
	return fileutil.ReplaceAtomic(path, buf.Bytes())
}

func readPNGTags(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunks, err := splitPNG(data)
	if err != nil {
		return nil, err
	}
	byKeyword := make(map[string]string, len(pngKeywords))
	for tag, kw := range pngKeywords {
		byKeyword[kw] = tag
	}
	tags := make(map[string]string, len(pngKeywords))
	for _, c := range chunks {
		if c.kind != "iTXt" && c.kind != "tEXt" {
			continue
		}
		kw, text, ok := parseText(c)
		if !ok {
			continue
		}
		if tag, known := byKeyword[kw]; known && text != "" {
			tags[tag] = text
		}
	}
	return tags, nil
}

// splitPNG returns the chunks after the signature, ending with IEND.
func splitPNG(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errPNGStructure
	}
	rest := data[len(pngSignature):]
	var chunks []pngChunk
	for len(rest) >= 12 {
		length := binary.BigEndian.Uint32(rest[:4])
		if uint64(length)+12 > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: chunk overruns file", errPNGStructure)
		}
		c := pngChunk{kind: string(rest[4:8]), data: rest[8 : 8+length]}
		chunks = append(chunks, c)
		rest = rest[12+length:]
		if c.kind == "IEND" {
			return chunks, nil
		}
	}
	return nil, fmt.Errorf("%w: missing IEND", errPNGStructure)
}

func writeChunk(buf *bytes.Buffer, c pngChunk) {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], uint32(len(c.data)))
	buf.Write(word[:])
	crc := crc32.NewIEEE()
	crc.Write([]byte(c.kind))
	crc.Write(c.data)
	buf.WriteString(c.kind)
	buf.Write(c.data)
	binary.BigEndian.PutUint32(word[:], crc.Sum32())
	buf.Write(word[:])
}

// textChunk builds an uncompressed iTXt chunk, which carries UTF-8 text.
func textChunk(keyword, text string) pngChunk {
	var b bytes.Buffer
	b.WriteString(keyword)
	// separator, compression flag, compression method, empty language tag and
	// empty translated keyword
	b.Write([]byte{0, 0, 0, 0, 0})
	b.WriteString(text)
	return pngChunk{kind: "iTXt", data: b.Bytes()}
}

// parseText decodes tEXt and uncompressed iTXt chunks.
func parseText(c pngChunk) (keyword, text string, ok bool) {
	kw, rest, found := bytes.Cut(c.data, []byte{0})
	if !found || len(kw) == 0 {
		return "", "", false
	}
	if c.kind == "tEXt" {
		return string(kw), string(rest), true
	}
	if len(rest) < 2 || rest[0] != 0 {
		return "", "", false
	}
	rest = rest[2:]
	_, rest, found = bytes.Cut(rest, []byte{0})
	if !found {
		return "", "", false
	}
	_, rest, found = bytes.Cut(rest, []byte{0})
	if !found {
		return "", "", false
	}
	return string(kw), string(rest), true
}
