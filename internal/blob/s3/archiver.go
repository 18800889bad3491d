package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadolabs/makerbot/internal/domain"
)

// JournalSource is the slice of the order journal the archiver needs: read
// aged terminal rows, then prune them once the archive is safely in the
// bucket.
type JournalSource interface {
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error)
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error)
}

// Verifier checks that an uploaded object actually exists. Satisfied by
// Reader.
type Verifier interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// OrderArchiver implements domain.Archiver: closed orders older than the
// cutoff are serialized to JSONL, uploaded, verified, and only then deleted
// from the journal. A failure anywhere leaves the rows in place for the next
// run.
type OrderArchiver struct {
	writer   domain.BlobWriter
	verifier Verifier
	journal  JournalSource
	logger   *slog.Logger
}

// NewOrderArchiver creates an OrderArchiver.
func NewOrderArchiver(writer domain.BlobWriter, verifier Verifier, journal JournalSource, logger *slog.Logger) *OrderArchiver {
	return &OrderArchiver{
		writer:   writer,
		verifier: verifier,
		journal:  journal,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOrders exports terminal orders closed before the cutoff and prunes
// them from the journal. Returns the number of archived rows.
func (a *OrderArchiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.journal.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	// Never delete rows whose archive we cannot read back.
	ok, err := a.verifier.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders verify: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: archive orders verify: object %s missing after upload", path)
	}

	deleted, err := a.journal.DeleteTerminalBefore(ctx, before)
	if err != nil {
		return int64(len(orders)), fmt.Errorf("s3blob: archive orders prune: %w", err)
	}

	a.logger.Info("archived orders",
		slog.String("path", path),
		slog.Int("archived", len(orders)),
		slog.Int64("pruned", deleted),
	)
	return int64(len(orders)), nil
}

// archivePath builds the object key for one archive run, partitioned by the
// cutoff's year-month with a unique per-run filename:
//
//	archive/orders/2026-08/20260824T120000Z.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/orders/%s/%s.jsonl",
		before.UTC().Format("2006-01"),
		before.UTC().Format("20060102T150405Z"),
	)
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// object per line.
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

// Compile-time interface check.
var _ domain.Archiver = (*OrderArchiver)(nil)
