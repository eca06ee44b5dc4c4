package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"arbmon/internal/domain"
)

// OpportunityArchiveStore is the slice of the opportunity store the
// archiver needs: reading and pruning records older than a cutoff.
type OpportunityArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// multipartWriter is implemented by blob writers that can upload a large
// payload in concurrent parts.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// multipartThreshold is the payload size above which archive uploads switch
// from a single PutObject to a multipart upload.
const multipartThreshold = int64(8 * 1024 * 1024)

// Archiver implements domain.Archiver: aged opportunity history is
// serialized to JSONL and uploaded to cold storage, then pruned from the
// primary store in a separate explicit step so the upload can be verified
// first.
type Archiver struct {
	writer domain.BlobWriter
	opps   OpportunityArchiveStore
	logger *slog.Logger

	// partThreshold is overridable in tests; payloads at or above it go
	// through the multipart path when the writer supports it.
	partThreshold int64
}

var _ domain.Archiver = (*Archiver)(nil)

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, opps OpportunityArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:        writer,
		opps:          opps,
		logger:        logger.With(slog.String("component", "archiver")),
		partThreshold: multipartThreshold,
	}
}

// ArchiveOpportunities uploads all opportunities detected before the cutoff
// to archive/opportunities/YYYY-MM.jsonl and returns the number of records
// archived. Nothing is deleted here.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := archivePath("opportunities", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	count := int64(len(opps))
	a.logger.Info("opportunities archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before))
	return count, nil
}

// upload writes the payload as a single object, switching to a multipart
// upload for payloads at or above the part threshold when the writer
// supports it.
func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) >= a.partThreshold {
		if mw, ok := a.writer.(multipartWriter); ok {
			return mw.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
		}
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// Prune deletes opportunities older than the cutoff from the primary store
// and returns the number deleted.
func (a *Archiver) Prune(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := a.opps.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune opportunities: %w", err)
	}
	a.logger.Info("opportunities pruned",
		slog.Int64("deleted", deleted),
		slog.Time("before", before))
	return deleted, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/opportunities/2026-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
