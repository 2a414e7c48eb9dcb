package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poligrain/inventory-reservation/internal/model"
	"github.com/poligrain/inventory-reservation/internal/queue"
)

func newTestSweeper(store *memStore, limit int) (*Sweeper, *capturePublisher) {
	events := &capturePublisher{}
	sw := NewSweeper(store, events, time.Minute, limit)
	sw.now = func() time.Time { return testNow }
	return sw, events
}

func TestSweepOnce_ReclaimsLapsedHolds(t *testing.T) {
	store := newMemStore()
	store.addProduct("p1", 10, 0, true)
	svc, _ := newTestService(store)

	res1, err := svc.Create(context.Background(), "u1", CreateInput{ProductID: "p1", Quantity: 3, DurationMinutes: 5})
	require.NoError(t, err)
	res2, err := svc.Create(context.Background(), "u2", CreateInput{ProductID: "p1", Quantity: 2, DurationMinutes: 5})
	require.NoError(t, err)
	require.Equal(t, int64(5), store.productReserved("p1"))

	sw, events := newTestSweeper(store, 0)
	sw.now = func() time.Time { return testNow.Add(10 * time.Minute) }

	expired, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	assert.Equal(t, int64(0), store.productReserved("p1"))
	assert.Equal(t, int64(10), store.productTotal("p1"))
	assert.Equal(t, model.StatusExpired, store.reservationStatus(res1.ID))
	assert.Equal(t, model.StatusExpired, store.reservationStatus(res2.ID))
	assert.Len(t, events.byType(queue.EventReservationExpired), 2)
}

func TestSweepOnce_LeavesUnexpiredHolds(t *testing.T) {
	store := newMemStore()
	store.addProduct("p1", 10, 0, true)
	svc, _ := newTestService(store)

	lapsed, err := svc.Create(context.Background(), "u1", CreateInput{ProductID: "p1", Quantity: 3, DurationMinutes: 5})
	require.NoError(t, err)
	live, err := svc.Create(context.Background(), "u2", CreateInput{ProductID: "p1", Quantity: 2, DurationMinutes: 60})
	require.NoError(t, err)

	sw, _ := newTestSweeper(store, 0)
	sw.now = func() time.Time { return testNow.Add(10 * time.Minute) }

	expired, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, model.StatusExpired, store.reservationStatus(lapsed.ID))
	assert.Equal(t, model.StatusActive, store.reservationStatus(live.ID))
	assert.Equal(t, int64(2), store.productReserved("p1"))
}

// A single pass drains everything even when the backlog exceeds the
// per-transaction batch size.
func TestSweepOnce_DrainsAcrossBatches(t *testing.T) {
	store := newMemStore()
	store.addProduct("p1", 10, 0, true)
	svc, _ := newTestService(store)

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := svc.Create(context.Background(), user, CreateInput{ProductID: "p1", Quantity: 1, DurationMinutes: 5})
		require.NoError(t, err)
	}

	sw, _ := newTestSweeper(store, 1)
	sw.now = func() time.Time { return testNow.Add(10 * time.Minute) }

	expired, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, expired)
	assert.Equal(t, int64(0), store.productReserved("p1"))
}

func TestSweepOnce_NothingToDo(t *testing.T) {
	store := newMemStore()
	store.addProduct("p1", 10, 0, true)

	sw, events := newTestSweeper(store, 0)
	expired, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Empty(t, events.events)
}
