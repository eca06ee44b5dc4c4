package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged opportunity history to cold storage and prunes it
// from the primary store.
type Archiver interface {
	// ArchiveOpportunities uploads all opportunities detected before the
	// cutoff as JSONL and returns the number of records archived.
	ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error)
	// Prune deletes archived records from the primary store. It is a
	// separate, explicit step so the archive can be verified first.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
