package domain

import (
	"context"
	"time"
)

// OrderJournal persists every placement and the eventual outcome of each
// order. It is write-mostly: the trading loop only appends and updates, the
// status mode and the archiver read.
type OrderJournal interface {
	// Record inserts a new journal row for a freshly placed order.
	Record(ctx context.Context, rec OrderRecord) error

	// UpdateStatus transitions an existing row to the given status, stamping
	// at as closed_at for terminal statuses. Returns ErrNotFound when no row
	// has that id.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, at time.Time) error

	// ListRecent returns the most recent rows for a symbol, newest first.
	ListRecent(ctx context.Context, symbol string, limit int) ([]OrderRecord, error)

	// ListTerminalBefore returns cancelled/filled rows closed strictly before
	// the cutoff, oldest first.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]OrderRecord, error)

	// DeleteTerminalBefore removes cancelled/filled rows closed strictly
	// before the cutoff and returns the number of rows deleted.
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error)
}
