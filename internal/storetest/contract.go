// Package storetest holds the behaviour every domain.Store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) domain.Store

// UnknownID is an id no backend will ever assign.
const UnknownID = "ffffffffffffffffffffffff"

func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyCatalog", func(t *testing.T) { testEmptyCatalog(t, newStore(t)) })
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("ListInsertionOrder", func(t *testing.T) { testListInsertionOrder(t, newStore(t)) })
	t.Run("ReplaceRooms", func(t *testing.T) { testReplaceRooms(t, newStore(t)) })
	t.Run("UpdateRoomKeepsStatus", func(t *testing.T) { testUpdateRoom(t, newStore(t)) })
	t.Run("ConditionalStatusUpdate", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("ConcurrentReserve", func(t *testing.T) { testConcurrentConditionalUpdate(t, newStore(t)) })
	t.Run("RecordPayment", func(t *testing.T) { testRecordPayment(t, newStore(t)) })
	t.Run("RecordPaymentExpectedStatus", func(t *testing.T) { testRecordPaymentExpected(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { assert.NoError(t, newStore(t).Ping(context.Background())) })
}

func sampleRoom(number int) *models.Room {
	return &models.Room{
		Number:      number,
		Type:        "personal",
		Description: "test room",
		Price:       50,
		Capacity:    1,
	}
}

func testEmptyCatalog(t *testing.T, store domain.Store) {
	ctx := context.Background()

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func testCreateAndGet(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))
	require.NotEmpty(t, room.ID)
	assert.Equal(t, models.StatusFree, room.Status)

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, *room, *got)

	_, err = store.GetRoom(ctx, UnknownID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = store.GetRoom(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func testListInsertionOrder(t *testing.T, store domain.Store) {
	ctx := context.Background()

	for _, number := range []int{303, 101, 202} {
		require.NoError(t, store.CreateRoom(ctx, sampleRoom(number)))
	}

	first, err := store.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, 303, first[0].Number)
	assert.Equal(t, 101, first[1].Number)
	assert.Equal(t, 202, first[2].Number)

	second, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func testReplaceRooms(t *testing.T, store domain.Store) {
	ctx := context.Background()

	old := sampleRoom(1)
	require.NoError(t, store.CreateRoom(ctx, old))

	require.NoError(t, store.ReplaceRooms(ctx, models.DefaultRooms()))

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	for i, room := range rooms {
		assert.Equal(t, 101+i, room.Number)
		assert.Equal(t, models.StatusFree, room.Status)
		assert.NotEmpty(t, room.ID)
	}

	_, err = store.GetRoom(ctx, old.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	require.NoError(t, store.ReplaceRooms(ctx, nil))
	rooms, err = store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func testUpdateRoom(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))

	room.Description = "renovated"
	room.Price = 75
	room.Capacity = 2
	room.Status = models.StatusReserved
	require.NoError(t, store.UpdateRoom(ctx, room))

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "renovated", got.Description)
	assert.Equal(t, 75.0, got.Price)
	assert.Equal(t, 2, got.Capacity)
	assert.Equal(t, models.StatusFree, got.Status)

	missing := sampleRoom(1)
	missing.ID = UnknownID
	assert.ErrorIs(t, store.UpdateRoom(ctx, missing), domain.ErrRoomNotFound)
}

func testConditionalUpdate(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))

	ok, err := store.UpdateRoomStatusIf(ctx, room.ID, models.StatusFree, models.StatusReserved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.UpdateRoomStatusIf(ctx, room.ID, models.StatusFree, models.StatusReserved)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, got.Status)

	ok, err = store.UpdateRoomStatusIf(ctx, UnknownID, models.StatusFree, models.StatusReserved)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentConditionalUpdate(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		errs    []error
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.UpdateRoomStatusIf(ctx, room.ID, models.StatusFree, models.StatusReserved)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if ok {
				winners++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, winners, "exactly one conditional update must win")
}

func testRecordPayment(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))
	_, err := store.UpdateRoomStatusIf(ctx, room.ID, models.StatusFree, models.StatusReserved)
	require.NoError(t, err)

	paidAt := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	payment := &models.Payment{RoomID: room.ID, Amount: 50, Date: paidAt}
	require.NoError(t, store.RecordPayment(ctx, payment, ""))
	assert.NotEmpty(t, payment.ID)

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, got.Status)

	// paying a free room is allowed when no status is expected
	second := &models.Payment{RoomID: room.ID, Amount: 10}
	require.NoError(t, store.RecordPayment(ctx, second, ""))
	assert.False(t, second.Date.IsZero())

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, payment.ID, payments[0].ID)
	assert.Equal(t, room.ID, payments[0].RoomID)
	assert.Equal(t, 50.0, payments[0].Amount)
	assert.WithinDuration(t, paidAt, payments[0].Date, time.Millisecond)
	assert.Equal(t, 10.0, payments[1].Amount)

	err = store.RecordPayment(ctx, &models.Payment{RoomID: UnknownID, Amount: 1}, "")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	payments, err = store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func testRecordPaymentExpected(t *testing.T, store domain.Store) {
	ctx := context.Background()

	room := sampleRoom(101)
	require.NoError(t, store.CreateRoom(ctx, room))

	err := store.RecordPayment(ctx, &models.Payment{RoomID: room.ID, Amount: 50}, models.StatusReserved)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	payments, err := store.ListPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments, "a rejected payment must not reach the ledger")

	_, err = store.UpdateRoomStatusIf(ctx, room.ID, models.StatusFree, models.StatusReserved)
	require.NoError(t, err)
	require.NoError(t, store.RecordPayment(ctx, &models.Payment{RoomID: room.ID, Amount: 50}, models.StatusReserved))

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, got.Status)
}
