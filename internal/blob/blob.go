// Package blob stores transcoded archives behind a small key/value
// abstraction. Three drivers exist: a local filesystem tree, an in-memory map
// for tests and an S3-compatible bucket. Every driver is create-only: putting
// an existing key fails with ErrExists.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions carries object attributes recorded alongside the content.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions tunes PresignURL. Only GET is supported.
type SignedURLOptions struct {
	Method string
	Expiry time.Duration
}

// Info describes a stored object.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	Metadata     map[string]string
	LastModified time.Time
	URL          string
}

// Store is the archive storage surface used by the transcoding service.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	ErrExists      = errors.New("blob already exists")
	ErrNotFound    = errors.New("blob not found")
	ErrUnsupported = errors.New("operation not supported by driver")
)

// ArchiveContentType is recorded on every stored COMBINE archive.
const ArchiveContentType = "application/zip"

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
