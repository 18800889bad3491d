package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nadolabs/makerbot/internal/domain"
)

// OrderJournal implements domain.OrderJournal using PostgreSQL. It is an
// append-mostly audit trail of every order the bot placed; the in-memory
// book stays the source of truth for live state.
type OrderJournal struct {
	pool *pgxpool.Pool
}

// NewOrderJournal creates an OrderJournal backed by the given pool.
func NewOrderJournal(pool *pgxpool.Pool) *OrderJournal {
	return &OrderJournal{pool: pool}
}

// Record inserts a newly placed order. An insert with an already-known ID
// updates the row instead, so replays after a crash stay idempotent.
func (j *OrderJournal) Record(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (id, run_id, symbol, side, price, size, status, placed_at, closed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			closed_at = EXCLUDED.closed_at,
			updated_at = NOW()`

	_, err := j.pool.Exec(ctx, query,
		rec.ID, rec.RunID, rec.Symbol, string(rec.Side),
		rec.Price, rec.Size, string(rec.Status),
		rec.PlacedAt, rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record order %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus moves an order to a new status. Terminal statuses also stamp
// closed_at. Returns domain.ErrNotFound for an unknown ID.
func (j *OrderJournal) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`
	args := []any{string(status), id}
	if status.Terminal() {
		query = `UPDATE orders SET status = $1, closed_at = $2, updated_at = NOW() WHERE id = $3`
		args = []any{string(status), at, id}
	}

	tag, err := j.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const orderSelectCols = `id, run_id, symbol, side, price, size, status, placed_at, closed_at`

func scanOrderFromRow(scanner interface{ Scan(dest ...any) error }) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var side, status string

	err := scanner.Scan(
		&rec.ID, &rec.RunID, &rec.Symbol,
		&side, &rec.Price, &rec.Size,
		&status, &rec.PlacedAt, &rec.ClosedAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec.Side = domain.Side(side)
	rec.Status = domain.OrderStatus(status)
	return rec, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.OrderRecord, error) {
	var records []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListRecent returns the most recently placed orders for a symbol.
func (j *OrderJournal) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.OrderRecord, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE symbol = $1
		 ORDER BY placed_at DESC
		 LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent orders: %w", err)
	}
	defer rows.Close()

	records, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent orders: %w", err)
	}
	return records, nil
}

// ListTerminalBefore returns closed orders whose closed_at falls before the
// cutoff, oldest first. Used by the archiver.
func (j *OrderJournal) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE status IN ('cancelled', 'filled') AND closed_at < $1
		 ORDER BY closed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	defer rows.Close()

	records, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal orders: %w", err)
	}
	return records, nil
}

// DeleteTerminalBefore removes closed orders older than the cutoff and
// returns how many rows went away.
func (j *OrderJournal) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := j.pool.Exec(ctx,
		`DELETE FROM orders
		 WHERE status IN ('cancelled', 'filled') AND closed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete terminal orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.OrderJournal = (*OrderJournal)(nil)
