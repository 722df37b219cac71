package repository

import (
	"context"
	"sync"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps the catalog and ledger in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]models.Room
	order    []string
	payments []models.Payment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]models.Room)}
}

func (s *MemoryStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.Room, 0, len(s.order))
	for _, id := range s.order {
		rooms = append(rooms, s.rooms[id])
	}
	return rooms, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &room, nil
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(room)
	return nil
}

func (s *MemoryStore) ReplaceRooms(ctx context.Context, rooms []models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms = make(map[string]models.Room, len(rooms))
	s.order = s.order[:0]
	for i := range rooms {
		room := rooms[i]
		s.insertLocked(&room)
	}
	return nil
}

func (s *MemoryStore) insertLocked(room *models.Room) {
	room.ID = uuid.NewString()
	if room.Status == "" {
		room.Status = models.StatusFree
	}
	s.rooms[room.ID] = *room
	s.order = append(s.order, room.ID)
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rooms[room.ID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	current.Number = room.Number
	current.Type = room.Type
	current.Description = room.Description
	current.Price = room.Price
	current.Capacity = room.Capacity
	s.rooms[room.ID] = current
	return nil
}

func (s *MemoryStore) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok || room.Status != expected {
		return false, nil
	}
	room.Status = next
	s.rooms[id] = room
	return true, nil
}

func (s *MemoryStore) RecordPayment(ctx context.Context, payment *models.Payment, expected models.RoomStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[payment.RoomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if expected != "" && room.Status != expected {
		return domain.ErrInvalidState
	}

	payment.ID = uuid.NewString()
	if payment.Date.IsZero() {
		payment.Date = nowUTC()
	}
	s.payments = append(s.payments, *payment)
	room.Status = models.StatusFree
	s.rooms[room.ID] = room
	return nil
}

func (s *MemoryStore) ListPayments(ctx context.Context) ([]models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]models.Payment, len(s.payments))
	copy(payments, s.payments)
	return payments, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
