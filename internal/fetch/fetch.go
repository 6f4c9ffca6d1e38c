package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Payload is the body of a successful fetch.
type Payload struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) (Payload, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	return f(ctx, rawURL)
}

var (
	// ErrUnsupportedScheme is returned for URLs no fetcher handles.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrTooLarge is returned when a body exceeds the configured cap.
	ErrTooLarge = errors.New("image exceeds size limit")
)

// StatusError reports a non-success response from the remote side.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// readCapped reads r fully, failing once more than limit bytes arrive.
// A limit <= 0 disables the cap.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
