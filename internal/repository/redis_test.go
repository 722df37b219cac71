package repository

import (
	"context"
	"testing"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
	"hotelbooking/internal/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedisStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		_, client := newTestRedis(t)
		return NewRedisStore(client, "test")
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	room := &models.Room{Number: 101, Type: "personal", Price: 50.5, Capacity: 1}
	require.NoError(t, store.CreateRoom(ctx, room))

	assert.Equal(t, "50.5", s.HGet("hotel:room:"+room.ID, "price"))
	assert.Equal(t, "free", s.HGet("hotel:room:"+room.ID, "status"))

	ids, err := s.List("hotel:rooms:index")
	require.NoError(t, err)
	assert.Equal(t, []string{room.ID}, ids)
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	a := NewRedisStore(client, "a")
	b := NewRedisStore(client, "b")
	require.NoError(t, a.ReplaceRooms(ctx, models.DefaultRooms()))

	rooms, err := b.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = a.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 4)
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	s.Close()

	ctx := context.Background()
	_, err := store.ListRooms(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = store.UpdateRoomStatusIf(ctx, "x", models.StatusFree, models.StatusReserved)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, store.Ping(ctx), domain.ErrStoreUnavailable)
}

func TestRedisStore_Close(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
