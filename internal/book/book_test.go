package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadolabs/makerbot/internal/domain"
)

func resting(id string, side domain.Side, placedAt time.Time) domain.RestingOrder {
	return domain.RestingOrder{
		ID:       id,
		Side:     side,
		Price:    100,
		Size:     0.0015,
		PlacedAt: placedAt,
	}
}

func TestRecordPlaced_OnePerSide(t *testing.T) {
	b := New()
	now := time.Now()

	require.NoError(t, b.RecordPlaced(resting("a", domain.SideBuy, now)))
	require.NoError(t, b.RecordPlaced(resting("b", domain.SideSell, now)))

	err := b.RecordPlaced(resting("c", domain.SideBuy, now))
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)

	// The original occupant is untouched.
	require.NotNil(t, b.Get(domain.SideBuy))
	assert.Equal(t, "a", b.Get(domain.SideBuy).ID)
}

func TestRecordPlaced_SetsOpenStatus(t *testing.T) {
	b := New()
	require.NoError(t, b.RecordPlaced(resting("a", domain.SideBuy, time.Now())))
	assert.Equal(t, domain.OrderStatusOpen, b.Get(domain.SideBuy).Status)
}

func TestMarkCancelRequested_StillOccupies(t *testing.T) {
	b := New()
	require.NoError(t, b.RecordPlaced(resting("a", domain.SideSell, time.Now())))

	b.MarkCancelRequested(domain.SideSell)

	require.True(t, b.Occupied(domain.SideSell))
	assert.Equal(t, domain.OrderStatusPendingCancel, b.Get(domain.SideSell).Status)

	// A new placement on that side is still rejected.
	err := b.RecordPlaced(resting("b", domain.SideSell, time.Now()))
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)
}

func TestRemove(t *testing.T) {
	b := New()
	require.NoError(t, b.RecordPlaced(resting("a", domain.SideBuy, time.Now())))

	b.Remove(domain.SideBuy)
	assert.False(t, b.Occupied(domain.SideBuy))
	assert.Nil(t, b.Get(domain.SideBuy))

	// Removing a vacant side is a no-op.
	b.Remove(domain.SideBuy)
}

func TestOpen_BuyFirst(t *testing.T) {
	b := New()
	now := time.Now()
	require.NoError(t, b.RecordPlaced(resting("s", domain.SideSell, now)))
	require.NoError(t, b.RecordPlaced(resting("b", domain.SideBuy, now)))

	open := b.Open()
	require.Len(t, open, 2)
	assert.Equal(t, domain.SideBuy, open[0].Side)
	assert.Equal(t, domain.SideSell, open[1].Side)
}

func TestOldestAge(t *testing.T) {
	b := New()
	now := time.Now()
	assert.Zero(t, b.OldestAge(now))

	require.NoError(t, b.RecordPlaced(resting("a", domain.SideBuy, now.Add(-10*time.Second))))
	require.NoError(t, b.RecordPlaced(resting("b", domain.SideSell, now.Add(-30*time.Second))))

	assert.Equal(t, 30*time.Second, b.OldestAge(now))
}
