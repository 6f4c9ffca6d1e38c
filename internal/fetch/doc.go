// Package fetch retrieves raw image bytes for catalog URLs.
//
// Fetchers never retry; the scheduler owns retry and backoff. The Router
// dispatches by scheme to the HTTP client, the S3 client (s3://bucket/key)
// and a local file reader used for offline imports.
package fetch
