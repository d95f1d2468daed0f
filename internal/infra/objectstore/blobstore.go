// Package objectstore stores rendered letter artifacts in a gocloud blob bucket.
package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/kursadbilgin/dispute-autopilot/internal/domain"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// ErrObjectNotFound reads as "object not found" and matches domain.ErrNotFound.
var ErrObjectNotFound = fmt.Errorf("object %w", domain.ErrNotFound)

// BlobStore keeps objects in a bucket. References are "<scheme>://" + key, where
// scheme is the bucket driver's URL scheme.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

// NewFileStore opens a filesystem bucket rooted at dir, creating it when missing.
func NewFileStore(dir string) (*BlobStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("object store root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve object store root: %w", err)
	}

	bucket, err := fileblob.OpenBucket(abs, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	return &BlobStore{bucket: bucket, prefix: fileblob.Scheme + "://"}, nil
}

// Open opens the bucket named by a gocloud URL such as file:///var/letters.
// The driver for the scheme must be linked into the binary.
func Open(ctx context.Context, bucketURL string) (*BlobStore, error) {
	u, err := url.Parse(strings.TrimSpace(bucketURL))
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("invalid object store url %q", bucketURL)
	}

	bucket, err := blob.OpenBucket(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open object store: %w", err)
	}
	return &BlobStore{bucket: bucket, prefix: u.Scheme + "://"}, nil
}

// Put writes data under key and returns its reference. Drivers commit the object
// when the writer closes, so a reader never sees a partial letter.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, cleaned, data, opts); err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", cleaned, err)
	}
	return s.prefix + cleaned, nil
}

func (s *BlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	key, ok := strings.CutPrefix(ref, s.prefix)
	if !ok {
		return nil, fmt.Errorf("unsupported object reference %q", ref)
	}
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	data, err := s.bucket.ReadAll(ctx, cleaned)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", cleaned, err)
	}
	return data, nil
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

// cleanKey collapses dot segments so a key can never address outside the bucket.
func cleanKey(key string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if cleaned == "" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}
