package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"kura/internal/config"
)

// Router dispatches fetches by URL scheme.
type Router struct {
	routes map[string]Fetcher
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Fetcher)}
}

// Handle registers f for the given schemes.
func (r *Router) Handle(f Fetcher, schemes ...string) {
	for _, scheme := range schemes {
		r.routes[strings.ToLower(scheme)] = f
	}
}

// Fetch forwards to the fetcher registered for the URL's scheme.
func (r *Router) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Payload{}, fmt.Errorf("parse %q: %w", rawURL, err)
	}
	f, ok := r.routes[strings.ToLower(u.Scheme)]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return f.Fetch(ctx, strings.TrimSpace(rawURL))
}

// New wires the HTTP, S3 and file fetchers from configuration.
func New(ctx context.Context, cfg *config.Config) (*Router, error) {
	r := NewRouter()
	r.Handle(NewHTTPClient(HTTPOptions{
		UserAgent: cfg.Download.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		MaxBytes:  cfg.MaxImageBytes(),
	}), "http", "https")
	r.Handle(NewFileClient(cfg.MaxImageBytes()), "file")

	s3Client, err := NewS3ClientFromConfig(ctx, cfg.S3, cfg.FetchTimeout(), cfg.MaxImageBytes())
	if err != nil {
		return nil, err
	}
	r.Handle(s3Client, "s3")
	return r, nil
}
