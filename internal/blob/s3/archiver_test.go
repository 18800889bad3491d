package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadolabs/makerbot/internal/domain"
)

type fakeWriter struct {
	objects map[string][]byte
	putErr  error
}

func (w *fakeWriter) Put(_ context.Context, path string, r io.Reader, _ string) error {
	if w.putErr != nil {
		return w.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = map[string][]byte{}
	}
	w.objects[path] = data
	return nil
}

type fakeVerifier struct {
	exists bool
	err    error
}

func (v *fakeVerifier) Exists(context.Context, string) (bool, error) {
	return v.exists, v.err
}

type fakeJournal struct {
	rows    []domain.OrderRecord
	listErr error
	deleted bool
	delErr  error
}

func (j *fakeJournal) ListTerminalBefore(context.Context, time.Time) ([]domain.OrderRecord, error) {
	return j.rows, j.listErr
}

func (j *fakeJournal) DeleteTerminalBefore(context.Context, time.Time) (int64, error) {
	if j.delErr != nil {
		return 0, j.delErr
	}
	j.deleted = true
	return int64(len(j.rows)), nil
}

func terminalRows(n int) []domain.OrderRecord {
	rows := make([]domain.OrderRecord, n)
	for i := range rows {
		rows[i] = domain.OrderRecord{
			ID:     "0xdigest" + string(rune('a'+i)),
			Symbol: "BTC-PERP",
			Side:   domain.SideBuy,
			Status: domain.OrderStatusCancelled,
		}
	}
	return rows
}

func newArchiver(w *fakeWriter, v *fakeVerifier, j *fakeJournal) *OrderArchiver {
	return NewOrderArchiver(w, v, j, slog.New(slog.DiscardHandler))
}

func TestArchiveOrders(t *testing.T) {
	w := &fakeWriter{}
	j := &fakeJournal{rows: terminalRows(3)}
	a := newArchiver(w, &fakeVerifier{exists: true}, j)

	cutoff := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	n, err := a.ArchiveOrders(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, j.deleted)

	data, ok := w.objects["archive/orders/2026-08/20260824T120000Z.jsonl"]
	require.True(t, ok, "object uploaded under the month-partitioned key")

	// One compact JSON object per line.
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 3)
	var rec domain.OrderRecord
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "BTC-PERP", rec.Symbol)
}

func TestArchiveOrders_NothingToArchive(t *testing.T) {
	w := &fakeWriter{}
	j := &fakeJournal{}
	a := newArchiver(w, &fakeVerifier{exists: true}, j)

	n, err := a.ArchiveOrders(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.objects, "no upload for an empty batch")
	assert.False(t, j.deleted)
}

func TestArchiveOrders_UploadFailureKeepsRows(t *testing.T) {
	j := &fakeJournal{rows: terminalRows(2)}
	a := newArchiver(&fakeWriter{putErr: errors.New("bucket gone")}, &fakeVerifier{exists: true}, j)

	_, err := a.ArchiveOrders(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, j.deleted, "rows must survive a failed upload")
}

func TestArchiveOrders_MissingObjectKeepsRows(t *testing.T) {
	j := &fakeJournal{rows: terminalRows(2)}
	a := newArchiver(&fakeWriter{}, &fakeVerifier{exists: false}, j)

	_, err := a.ArchiveOrders(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing after upload")
	assert.False(t, j.deleted)
}

func TestArchivePath(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := archivePath(at)
	assert.Equal(t, "archive/orders/2026-01/20260102T030405Z.jsonl", got)
	assert.False(t, strings.Contains(got, " "))
}
