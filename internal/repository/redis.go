package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scripts run server side so that check-and-set steps are atomic.
var (
	casStatusScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == ARGV[1] then
  redis.call('HSET', KEYS[1], 'status', ARGV[2])
  return 1
end
return 0
`)

	recordPaymentScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if ARGV[1] ~= '' and status ~= ARGV[1] then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('HSET', KEYS[1], 'status', 'free')
return 1
`)

	updateRoomScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'number', ARGV[1], 'type', ARGV[2], 'description', ARGV[3], 'price', ARGV[4], 'capacity', ARGV[5])
return 1
`)

	replaceRoomsScript = redis.NewScript(`
local prefix = ARGV[1]
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  redis.call('DEL', prefix .. id)
end
redis.call('DEL', KEYS[1])
for i = 2, #ARGV, 7 do
  redis.call('HSET', prefix .. ARGV[i], 'number', ARGV[i+1], 'type', ARGV[i+2], 'description', ARGV[i+3], 'price', ARGV[i+4], 'capacity', ARGV[i+5], 'status', ARGV[i+6])
  redis.call('RPUSH', KEYS[1], ARGV[i])
end
return #ids
`)
)

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

// RedisStore keeps each room in a hash, the insertion order in a list and the
// ledger as a list of JSON documents.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "hotel"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) indexKey() string    { return r.prefix + ":rooms:index" }
func (r *RedisStore) roomPrefix() string  { return r.prefix + ":room:" }
func (r *RedisStore) paymentsKey() string { return r.prefix + ":payments" }

func (r *RedisStore) roomKey(id string) string {
	return r.roomPrefix() + id
}

func (r *RedisStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	ids, err := r.client.LRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, domain.StoreError("redis list rooms", err)
	}
	rooms := make([]models.Room, 0, len(ids))
	if len(ids) == 0 {
		return rooms, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, r.roomKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("redis list rooms", err)
	}

	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		room, err := decodeRoom(ids[i], fields)
		if err != nil {
			return nil, domain.StoreError("redis list rooms", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

func (r *RedisStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	fields, err := r.client.HGetAll(ctx, r.roomKey(id)).Result()
	if err != nil {
		return nil, domain.StoreError("redis get room", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRoomNotFound
	}
	room, err := decodeRoom(id, fields)
	if err != nil {
		return nil, domain.StoreError("redis get room", err)
	}
	return room, nil
}

func (r *RedisStore) CreateRoom(ctx context.Context, room *models.Room) error {
	id := uuid.NewString()
	if room.Status == "" {
		room.Status = models.StatusFree
	}

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.roomKey(id), encodeRoom(room))
		p.RPush(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return domain.StoreError("redis create room", err)
	}
	room.ID = id
	return nil
}

func (r *RedisStore) ReplaceRooms(ctx context.Context, rooms []models.Room) error {
	args := make([]interface{}, 0, 1+len(rooms)*7)
	args = append(args, r.roomPrefix())
	for _, room := range rooms {
		status := room.Status
		if status == "" {
			status = models.StatusFree
		}
		args = append(args,
			uuid.NewString(),
			strconv.Itoa(room.Number),
			room.Type,
			room.Description,
			formatFloat(room.Price),
			strconv.Itoa(room.Capacity),
			string(status),
		)
	}

	if err := replaceRoomsScript.Run(ctx, r.client, []string{r.indexKey()}, args...).Err(); err != nil {
		return domain.StoreError("redis replace rooms", err)
	}
	return nil
}

func (r *RedisStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	updated, err := updateRoomScript.Run(ctx, r.client, []string{r.roomKey(room.ID)},
		strconv.Itoa(room.Number),
		room.Type,
		room.Description,
		formatFloat(room.Price),
		strconv.Itoa(room.Capacity),
	).Int()
	if err != nil {
		return domain.StoreError("redis update room", err)
	}
	if updated == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RedisStore) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	swapped, err := casStatusScript.Run(ctx, r.client, []string{r.roomKey(id)}, string(expected), string(next)).Int()
	if err != nil {
		return false, domain.StoreError("redis update status", err)
	}
	return swapped == 1, nil
}

func (r *RedisStore) RecordPayment(ctx context.Context, payment *models.Payment, expected models.RoomStatus) error {
	record := *payment
	record.ID = uuid.NewString()
	if record.Date.IsZero() {
		record.Date = nowUTC()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	result, err := recordPaymentScript.Run(ctx, r.client,
		[]string{r.roomKey(payment.RoomID), r.paymentsKey()},
		string(expected), string(data),
	).Int()
	if err != nil {
		return domain.StoreError("redis record payment", err)
	}

	switch result {
	case -1:
		return domain.ErrRoomNotFound
	case 0:
		return domain.ErrInvalidState
	}
	*payment = record
	return nil
}

func (r *RedisStore) ListPayments(ctx context.Context) ([]models.Payment, error) {
	values, err := r.client.LRange(ctx, r.paymentsKey(), 0, -1).Result()
	if err != nil {
		return nil, domain.StoreError("redis list payments", err)
	}

	payments := make([]models.Payment, 0, len(values))
	for _, value := range values {
		var p models.Payment
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return domain.StoreError("redis ping", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}

func encodeRoom(room *models.Room) map[string]interface{} {
	return map[string]interface{}{
		"number":      room.Number,
		"type":        room.Type,
		"description": room.Description,
		"price":       formatFloat(room.Price),
		"capacity":    room.Capacity,
		"status":      string(room.Status),
	}
}

func decodeRoom(id string, fields map[string]string) (*models.Room, error) {
	number, err := strconv.Atoi(fields["number"])
	if err != nil {
		return nil, fmt.Errorf("room %s: bad number: %w", id, err)
	}
	price, err := strconv.ParseFloat(fields["price"], 64)
	if err != nil {
		return nil, fmt.Errorf("room %s: bad price: %w", id, err)
	}
	capacity, err := strconv.Atoi(fields["capacity"])
	if err != nil {
		return nil, fmt.Errorf("room %s: bad capacity: %w", id, err)
	}
	return &models.Room{
		ID:          id,
		Number:      number,
		Type:        fields["type"],
		Description: fields["description"],
		Price:       price,
		Capacity:    capacity,
		Status:      models.RoomStatus(fields["status"]),
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
