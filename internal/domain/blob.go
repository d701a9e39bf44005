package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one archived object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads archive documents to object storage. PutMultipart is
// for exports large enough to stream in parts.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves archived documents. The archiver uses Exists to
// confirm an upload before pruning database rows; Get and List serve
// restore and audit tooling.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports matches finished before a cutoff to cold storage and
// prunes them from the database. It returns the number of matches moved.
type Archiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
