package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged terminal order rows to blob storage and prunes them
// from the primary store.
type Archiver interface {
	// ArchiveOrders exports cancelled/filled rows placed before the cutoff
	// and returns how many were archived.
	ArchiveOrders(ctx context.Context, before time.Time) (int64, error)
}
