package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Fetcher downloads s3:// objects to temporary local files so the
// extraction layer only ever deals with the filesystem.
type Fetcher struct {
	client *s3.Client
}

func NewFetcher(ctx context.Context) (*Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Fetcher{client: s3.NewFromConfig(cfg)}, nil
}

func NewFetcherWithClient(client *s3.Client) *Fetcher {
	return &Fetcher{client: client}
}

// ParsePath splits an s3://bucket/key URI into bucket and key.
func ParsePath(uri string) (bucket, key string, err error) {
	const prefix = "s3://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("s3 path must start with %q, got %q", prefix, uri)
	}
	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 path %q", uri)
	}
	return parts[0], parts[1], nil
}

// Fetch downloads the object behind the URI into a temp file and
// returns its path plus a cleanup callback.
func (f *Fetcher) Fetch(ctx context.Context, uri string) (string, func(), error) {
	bucket, key, err := ParsePath(uri)
	if err != nil {
		return "", nil, err
	}

	slog.DebugContext(ctx, "fetching object", "bucket", bucket, "key", key)

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "docdex-*")
	if err != nil {
		return "", nil, err
	}

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}

	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "path", tmp.Name(), "error", err)
		}
	}
	return tmp.Name(), cleanup, nil
}
