package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// FileClient reads file:// URLs from the local filesystem.
type FileClient struct {
	maxBytes int64
}

// NewFileClient builds a local file fetcher.
func NewFileClient(maxBytes int64) *FileClient {
	return &FileClient{maxBytes: maxBytes}
}

// Fetch reads the file named by rawURL. A missing file maps to a 404
// StatusError.
func (c *FileClient) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Payload{}, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	path := filepath.FromSlash(u.Path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Payload{}, &StatusError{URL: rawURL, Code: http.StatusNotFound}
		}
		return Payload{}, err
	}
	defer f.Close()

	data, err := readCapped(f, c.maxBytes)
	if err != nil {
		return Payload{}, fmt.Errorf("read %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return Payload{Data: data, ContentType: contentType}, nil
}
