package repository

import (
	"context"
	"testing"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
	"hotelbooking/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	room := &models.Room{Number: 101, Type: "personal", Price: 50, Capacity: 1}
	require.NoError(t, store.CreateRoom(ctx, room))

	got, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	got.Status = models.StatusReserved

	rooms, err := store.ListRooms(ctx)
	require.NoError(t, err)
	rooms[0].Price = 1

	again, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFree, again.Status)
	assert.Equal(t, 50.0, again.Price)
}

func TestMemoryStore_PingHonoursContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
}
