package domain

import (
	"context"

	"hotelbooking/internal/models"
)

// RoomStore is the room catalog. Implementations hold no business rules apart
// from the atomic conditional update.
type RoomStore interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	ReplaceRooms(ctx context.Context, rooms []models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	// UpdateRoomStatusIf sets the status to next only while it still equals
	// expected. It returns false when the room is missing or in another state.
	UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error)
	Ping(ctx context.Context) error
}

// PaymentLedger is the append-only payment record.
type PaymentLedger interface {
	// RecordPayment appends the payment and frees the room in one step.
	// A non-empty expected status must match the room's current status.
	RecordPayment(ctx context.Context, payment *models.Payment, expected models.RoomStatus) error
	ListPayments(ctx context.Context) ([]models.Payment, error)
}

// Store is a backend that provides both the catalog and the ledger.
type Store interface {
	RoomStore
	PaymentLedger
	Close() error
}

type EventPublisher interface {
	Emit(ctx context.Context, level, message string, fields map[string]any)
}

type BookingService interface {
	GetRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	CreateRoom(ctx context.Context, input RoomInput) (*models.Room, error)
	UpdateRoom(ctx context.Context, id string, input RoomInput) (*models.Room, error)
	ReserveRoom(ctx context.Context, id string) (*models.Room, error)
	PayForRoom(ctx context.Context, id string, amount float64) (*models.Payment, error)
	ListPayments(ctx context.Context) ([]models.Payment, error)
	Ready(ctx context.Context) error
}

// RoomInput carries the caller-supplied room fields.
type RoomInput struct {
	Number      int               `json:"number"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Price       float64           `json:"price"`
	Capacity    int               `json:"capacity"`
	Status      models.RoomStatus `json:"status,omitempty"`
}
