package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"kura/internal/config"
)

// ObjectGetter is the subset of the S3 API the fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Client fetches s3://bucket/key URLs.
type S3Client struct {
	api      ObjectGetter
	maxBytes int64
}

// NewS3Client wraps an existing S3 API client.
func NewS3Client(api ObjectGetter, maxBytes int64) *S3Client {
	return &S3Client{api: api, maxBytes: maxBytes}
}

// NewS3ClientFromConfig loads AWS configuration (static credentials when
// both keys are set, the default chain otherwise). SDK retries are disabled.
func NewS3ClientFromConfig(ctx context.Context, cfg config.S3, timeout time.Duration, maxBytes int64) (*S3Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	optFns = append(optFns,
		awsconfig.WithRetryMaxAttempts(1),
		awsconfig.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3Client(api, maxBytes), nil
}

// Fetch downloads one object. Missing objects map to a 404 StatusError.
func (c *S3Client) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return Payload{}, err
	}
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return Payload{}, &StatusError{URL: rawURL, Code: http.StatusNotFound}
		}
		return Payload{}, fmt.Errorf("get object %s: %w", rawURL, err)
	}
	defer out.Body.Close()

	data, err := readCapped(out.Body, c.maxBytes)
	if err != nil {
		return Payload{}, fmt.Errorf("read object %s: %w", rawURL, err)
	}
	return Payload{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

func parseS3URL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 url %q must name a bucket and key", rawURL)
	}
	return u.Host, key, nil
}

func isNotFoundError(err error) bool {
	var nsk *s3types.NoSuchKey
	var nse *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nse)
}
