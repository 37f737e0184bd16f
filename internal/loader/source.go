package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
)

// Source lists and opens spreadsheet files.
type Source interface {
	// List returns the names of supported files, sorted.
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// NewSource picks a bucket source when a bucket is configured and a local
// directory otherwise.
func NewSource(cfg config.LoaderConfig) (Source, error) {
	if strings.TrimSpace(cfg.Bucket) != "" {
		return NewBucketSource(cfg)
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("either a directory or a bucket is required")
	}
	return DirSource{Dir: cfg.Dir}, nil
}

// DirSource reads files from one local directory, not recursively.
type DirSource struct {
	Dir string
}

func (s DirSource) String() string { return s.Dir }

func (s DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !Supported(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

// objectClient is the subset of an object store used by BucketSource.
type objectClient interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// BucketSource reads files from an S3-compatible bucket under a prefix.
type BucketSource struct {
	client objectClient
	bucket string
	prefix string
}

// NewBucketSource connects to the configured S3-compatible endpoint.
func NewBucketSource(cfg config.LoaderConfig) (*BucketSource, error) {
	endpoint, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return NewBucketSourceWithClient(cfg.Bucket, cfg.Prefix, &minioClient{client: mc})
}

func NewBucketSourceWithClient(bucket, prefix string, c objectClient) (*BucketSource, error) {
	if c == nil {
		return nil, errors.New("client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	return &BucketSource{client: c, bucket: strings.TrimSpace(bucket), prefix: cleanPrefix(prefix)}, nil
}

func (s *BucketSource) String() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *BucketSource) List(ctx context.Context) ([]string, error) {
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	keys, err := s.client.List(ctx, s.bucket, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("list bucket %q: %w", s.bucket, err)
	}
	var names []string
	for _, key := range keys {
		if strings.HasSuffix(key, "/") || !Supported(key) {
			continue
		}
		names = append(names, key)
	}
	sort.Strings(names)
	return names, nil
}

func (s *BucketSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.client.Get(ctx, s.bucket, name)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", name, err)
	}
	return rc, nil
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "/"))
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("object store endpoint is required")
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint URL: %w", err)
		}
		if parsed.Host == "" {
			return "", false, errors.New("endpoint host is required")
		}
		return parsed.Host, parsed.Scheme == "https" || useSSL, nil
	}
	return raw, useSSL, nil
}

type minioClient struct {
	client *minio.Client
}

func (m *minioClient) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *minioClient) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}
