package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotelbooking/internal/clock"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
	"hotelbooking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Emit(ctx context.Context, level, message string, fields map[string]any) {
	m.Called(ctx, level, message, fields)
}

// brokenStore fails every call the way an unreachable backend would.
type brokenStore struct {
	*repository.MemoryStore
	failReserve bool
	failPay     bool
	failList    bool
}

var errBackend = domain.StoreError("test", errors.New("connection refused"))

func (s *brokenStore) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	if s.failReserve {
		return false, errBackend
	}
	return s.MemoryStore.UpdateRoomStatusIf(ctx, id, expected, next)
}

func (s *brokenStore) RecordPayment(ctx context.Context, p *models.Payment, expected models.RoomStatus) error {
	if s.failPay {
		return errBackend
	}
	return s.MemoryStore.RecordPayment(ctx, p, expected)
}

func (s *brokenStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	if s.failList {
		return nil, errBackend
	}
	return s.MemoryStore.ListRooms(ctx)
}

func newTestService(t *testing.T, opts ...Option) (*BookingService, *repository.MemoryStore, *MockEventPublisher) {
	t.Helper()
	store := repository.NewMemoryStore()
	events := &MockEventPublisher{}
	events.On("Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	return NewBookingService(store, store, events, nil, opts...), store, events
}

func validInput(number int) domain.RoomInput {
	return domain.RoomInput{Number: number, Type: "doble", Description: "sea view", Price: 100, Capacity: 2}
}

func TestBookingService_Scenario(t *testing.T) {
	svc, _, events := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, room.Status)

	reserved, err := svc.ReserveRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, reserved.Status)

	payment, err := svc.PayForRoom(ctx, room.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, room.ID, payment.RoomID)
	assert.Equal(t, 100.0, payment.Amount)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, got.Status)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	events.AssertCalled(t, "Emit", mock.Anything, "info", "Room reserved",
		map[string]any{"action": "reserved", "roomId": room.ID})
	events.AssertCalled(t, "Emit", mock.Anything, "info", "Payment processed",
		map[string]any{"action": "paid", "roomId": room.ID, "amount": 100.0})
}

func TestBookingService_ReserveTwice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	_, err = svc.ReserveRoom(ctx, room.ID)
	require.NoError(t, err)

	_, err = svc.ReserveRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := svc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, got.Status)
}

func TestBookingService_NotFound(t *testing.T) {
	svc, _, events := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = svc.ReserveRoom(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = svc.PayForRoom(ctx, "missing", 10)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = svc.UpdateRoom(ctx, "missing", validInput(1))
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	events.AssertNotCalled(t, "Emit", mock.Anything, "error", mock.Anything, mock.Anything)
}

func TestBookingService_PaymentDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	before := time.Now()
	payment, err := svc.PayForRoom(ctx, room.ID, 25)
	require.NoError(t, err)
	assert.False(t, payment.Date.Before(before))
	assert.NotEmpty(t, payment.ID)
}

func TestBookingService_FixedClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	payment, err := svc.PayForRoom(ctx, room.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, now, payment.Date)
}

func TestBookingService_PayOnFree(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted by default", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		room, err := svc.CreateRoom(ctx, validInput(101))
		require.NoError(t, err)

		_, err = svc.PayForRoom(ctx, room.ID, 10)
		assert.NoError(t, err)
	})

	t.Run("rejected when reservation required", func(t *testing.T) {
		svc, _, _ := newTestService(t, WithReservationRequired(true))
		room, err := svc.CreateRoom(ctx, validInput(101))
		require.NoError(t, err)

		_, err = svc.PayForRoom(ctx, room.ID, 10)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		payments, err := svc.ListPayments(ctx)
		require.NoError(t, err)
		assert.Empty(t, payments)

		_, err = svc.ReserveRoom(ctx, room.ID)
		require.NoError(t, err)
		_, err = svc.PayForRoom(ctx, room.ID, 10)
		assert.NoError(t, err)
	})
}

func TestBookingService_PaymentAmountValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	var zero float64
	for _, amount := range []float64{-1, zero / zero} {
		_, err := svc.PayForRoom(ctx, room.ID, amount)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "amount", verr.Field)
	}

	_, err = svc.PayForRoom(ctx, room.ID, 0)
	assert.NoError(t, err)
}

func TestBookingService_ConcurrentReserve(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	const callers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		rejected int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.ReserveRoom(ctx, room.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, domain.ErrInvalidState):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, callers-1, rejected)
}

func TestBookingService_CreateRoomValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input domain.RoomInput
		field string
	}{
		{"zero number", domain.RoomInput{Type: "x", Price: 1, Capacity: 1}, "number"},
		{"blank type", domain.RoomInput{Number: 1, Type: "  ", Price: 1, Capacity: 1}, "type"},
		{"negative price", domain.RoomInput{Number: 1, Type: "x", Price: -5, Capacity: 1}, "price"},
		{"zero capacity", domain.RoomInput{Number: 1, Type: "x", Price: 1}, "capacity"},
		{"unknown status", domain.RoomInput{Number: 1, Type: "x", Price: 1, Capacity: 1, Status: "occupied"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRoom(ctx, tt.input)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestBookingService_CreateReservedRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	input := validInput(101)
	input.Status = models.StatusReserved
	room, err := svc.CreateRoom(ctx, input)
	require.NoError(t, err)

	_, err = svc.ReserveRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestBookingService_UpdateRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)
	_, err = svc.ReserveRoom(ctx, room.ID)
	require.NoError(t, err)

	input := validInput(201)
	input.Price = 120
	updated, err := svc.UpdateRoom(ctx, room.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 201, updated.Number)
	assert.Equal(t, 120.0, updated.Price)
	assert.Equal(t, models.StatusReserved, updated.Status)

	input.Status = models.StatusFree
	_, err = svc.UpdateRoom(ctx, room.ID, input)
	assert.ErrorIs(t, err, domain.ErrValidation)

	input.Status = models.StatusReserved
	_, err = svc.UpdateRoom(ctx, room.ID, input)
	assert.NoError(t, err)
}

func TestBookingService_GetRoomsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedRooms(ctx, models.DefaultRooms()))

	first, err := svc.GetRooms(ctx)
	require.NoError(t, err)
	second, err := svc.GetRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestBookingService_SeedRooms(t *testing.T) {
	svc, _, events := newTestService(t)
	ctx := context.Background()

	room, err := svc.CreateRoom(ctx, validInput(999))
	require.NoError(t, err)
	_, err = svc.ReserveRoom(ctx, room.ID)
	require.NoError(t, err)

	seed := models.DefaultRooms()
	seed[0].Status = ""
	require.NoError(t, svc.SeedRooms(ctx, seed))

	rooms, err := svc.GetRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	for _, r := range rooms {
		assert.Equal(t, models.StatusFree, r.Status)
	}

	_, err = svc.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	events.AssertCalled(t, "Emit", mock.Anything, "info", "Rooms preloaded", map[string]any{"count": 4})
}

func TestBookingService_StoreFailures(t *testing.T) {
	ctx := context.Background()
	store := &brokenStore{MemoryStore: repository.NewMemoryStore()}
	events := &MockEventPublisher{}
	events.On("Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	svc := NewBookingService(store, store, events, nil)

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	store.failReserve = true
	_, err = svc.ReserveRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	events.AssertCalled(t, "Emit", mock.Anything, "error", "Error reserving room", mock.Anything)

	store.failPay = true
	_, err = svc.PayForRoom(ctx, room.ID, 10)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	events.AssertCalled(t, "Emit", mock.Anything, "error", "Error processing payment", mock.Anything)

	store.failList = true
	_, err = svc.GetRooms(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	got, err := store.MemoryStore.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, got.Status, "a failed reserve must leave the room untouched")
}

func TestBookingService_RoomVanishesDuringReserve(t *testing.T) {
	ctx := context.Background()
	store := &vanishingStore{MemoryStore: repository.NewMemoryStore()}
	svc := NewBookingService(store, store, nil, nil)

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	_, err = svc.ReserveRoom(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

// vanishingStore resets the catalog between the read and the conditional update.
type vanishingStore struct {
	*repository.MemoryStore
}

func (s *vanishingStore) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	if err := s.MemoryStore.ReplaceRooms(ctx, nil); err != nil {
		return false, err
	}
	return s.MemoryStore.UpdateRoomStatusIf(ctx, id, expected, next)
}

func TestBookingService_StoreFailsAfterLostReserve(t *testing.T) {
	ctx := context.Background()
	store := &lostRaceStore{MemoryStore: repository.NewMemoryStore()}
	svc := NewBookingService(store, store, nil, nil)

	room, err := svc.CreateRoom(ctx, validInput(101))
	require.NoError(t, err)

	_, err = svc.ReserveRoom(ctx, room.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInvalidState)
}

// lostRaceStore loses every conditional update and then fails the re-read.
type lostRaceStore struct {
	*repository.MemoryStore
	lost bool
}

func (s *lostRaceStore) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	s.lost = true
	return false, nil
}

func (s *lostRaceStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	if s.lost {
		return nil, errBackend
	}
	return s.MemoryStore.GetRoom(ctx, id)
}

func TestBookingService_StoreTimeout(t *testing.T) {
	ctx := context.Background()
	store := &slowStore{MemoryStore: repository.NewMemoryStore()}
	svc := NewBookingService(store, store, nil, nil, WithStoreTimeout(20*time.Millisecond))

	_, err := svc.GetRooms(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowStore struct {
	*repository.MemoryStore
}

func (s *slowStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	<-ctx.Done()
	return nil, domain.StoreError("slow list", ctx.Err())
}

func TestBookingService_Ready(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.NoError(t, svc.Ready(context.Background()))
}
