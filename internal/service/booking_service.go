package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"hotelbooking/internal/clock"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/metrics"
	"hotelbooking/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	rooms   domain.RoomStore
	ledger  domain.PaymentLedger
	events  domain.EventPublisher
	clock   clock.Clock
	timeout time.Duration
	strict  bool
	logger  *zerolog.Logger
}

type Option func(*BookingService)

func WithClock(c clock.Clock) Option {
	return func(s *BookingService) {
		s.clock = c
	}
}

// WithStoreTimeout bounds every store call made on behalf of one operation.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		s.timeout = d
	}
}

// WithReservationRequired makes PayForRoom reject rooms that are not reserved.
func WithReservationRequired(required bool) Option {
	return func(s *BookingService) {
		s.strict = required
	}
}

func NewBookingService(rooms domain.RoomStore, ledger domain.PaymentLedger, events domain.EventPublisher, logger *zerolog.Logger, opts ...Option) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &BookingService{
		rooms:   rooms,
		ledger:  ledger,
		events:  events,
		clock:   clock.NewSystem(),
		timeout: models.DefaultStoreTimeout * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) GetRooms(ctx context.Context) ([]models.Room, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		s.storeFailure(ctx, "Error fetching rooms", "", err)
		return nil, err
	}
	return rooms, nil
}

func (s *BookingService) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		if !isBusinessError(err) {
			s.storeFailure(ctx, "Error fetching room", id, err)
		}
		return nil, err
	}
	return room, nil
}

func (s *BookingService) CreateRoom(ctx context.Context, input domain.RoomInput) (*models.Room, error) {
	if err := validateRoomInput(input); err != nil {
		return nil, err
	}

	room := &models.Room{
		Number:      input.Number,
		Type:        strings.TrimSpace(input.Type),
		Description: input.Description,
		Price:       input.Price,
		Capacity:    input.Capacity,
		Status:      input.Status,
	}
	if room.Status == "" {
		room.Status = models.StatusFree
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		s.storeFailure(ctx, "Error creating room", "", err)
		return nil, err
	}

	s.logger.Info().Str("room_id", room.ID).Int("number", room.Number).Msg("Room created")
	s.emit(ctx, "info", "Room created", map[string]any{"roomId": room.ID})
	return room, nil
}

// UpdateRoom rewrites the descriptive fields of a room. Status is owned by
// the reservation flow and cannot be changed here.
func (s *BookingService) UpdateRoom(ctx context.Context, id string, input domain.RoomInput) (*models.Room, error) {
	if err := validateRoomInput(input); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		if !isBusinessError(err) {
			s.storeFailure(ctx, "Error updating room", id, err)
		}
		return nil, err
	}
	if input.Status != "" && input.Status != room.Status {
		return nil, &domain.ValidationError{Field: "status", Reason: "changes only through reserve and pay"}
	}

	room.Number = input.Number
	room.Type = strings.TrimSpace(input.Type)
	room.Description = input.Description
	room.Price = input.Price
	room.Capacity = input.Capacity

	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		if !isBusinessError(err) {
			s.storeFailure(ctx, "Error updating room", id, err)
		}
		return nil, err
	}

	s.emit(ctx, "info", "Room updated", map[string]any{"roomId": room.ID})
	return room, nil
}

// ReserveRoom moves a free room to reserved. Concurrent callers race on the
// store's conditional update, so at most one of them wins.
func (s *BookingService) ReserveRoom(ctx context.Context, id string) (*models.Room, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return nil, s.transitionFailed(ctx, ActionReserve, "Error reserving room", id, err)
	}

	next, err := Next(room.Status, ActionReserve, false)
	if err != nil {
		return nil, s.transitionFailed(ctx, ActionReserve, "Error reserving room", id, err)
	}

	swapped, err := s.rooms.UpdateRoomStatusIf(ctx, id, room.Status, next)
	if err != nil {
		return nil, s.transitionFailed(ctx, ActionReserve, "Error reserving room", id, err)
	}
	if !swapped {
		// lost the race, or the catalog was reset underneath us
		if _, getErr := s.rooms.GetRoom(ctx, id); getErr != nil {
			return nil, s.transitionFailed(ctx, ActionReserve, "Error reserving room", id, getErr)
		}
		return nil, s.transitionFailed(ctx, ActionReserve, "Error reserving room", id, domain.ErrInvalidState)
	}

	room.Status = next
	metrics.IncTransition(string(ActionReserve), metrics.OutcomeSuccess)
	s.logger.Info().Str("room_id", id).Msg("Room reserved")
	s.emit(ctx, "info", "Room reserved", map[string]any{"action": "reserved", "roomId": id})
	return room, nil
}

// PayForRoom records a payment and frees the room in a single ledger step.
func (s *BookingService) PayForRoom(ctx context.Context, id string, amount float64) (*models.Payment, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be a non-negative number"}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return nil, s.transitionFailed(ctx, ActionPay, "Error processing payment", id, err)
	}

	if _, err := Next(room.Status, ActionPay, s.strict); err != nil {
		return nil, s.transitionFailed(ctx, ActionPay, "Error processing payment", id, err)
	}

	var expected models.RoomStatus
	if s.strict {
		expected = models.StatusReserved
	}

	payment := &models.Payment{
		RoomID: room.ID,
		Amount: amount,
		Date:   s.clock.Now(),
	}
	if err := s.ledger.RecordPayment(ctx, payment, expected); err != nil {
		return nil, s.transitionFailed(ctx, ActionPay, "Error processing payment", id, err)
	}

	metrics.IncTransition(string(ActionPay), metrics.OutcomeSuccess)
	s.logger.Info().Str("room_id", id).Float64("amount", amount).Str("payment_id", payment.ID).Msg("Payment processed")
	s.emit(ctx, "info", "Payment processed", map[string]any{"action": "paid", "roomId": id, "amount": amount})
	return payment, nil
}

func (s *BookingService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	payments, err := s.ledger.ListPayments(ctx)
	if err != nil {
		s.storeFailure(ctx, "Error fetching payments", "", err)
		return nil, err
	}
	return payments, nil
}

// SeedRooms wipes the catalog and loads rooms in its place.
func (s *BookingService) SeedRooms(ctx context.Context, rooms []models.Room) error {
	seed := make([]models.Room, len(rooms))
	for i, room := range rooms {
		room.ID = ""
		if room.Status == "" {
			room.Status = models.StatusFree
		}
		seed[i] = room
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rooms.ReplaceRooms(ctx, seed); err != nil {
		s.logger.Error().Err(err).Msg("Error preloading rooms")
		s.emit(ctx, "error", "Error preloading rooms", map[string]any{"error": err.Error()})
		return err
	}

	s.logger.Info().Int("rooms", len(seed)).Msg("Rooms preloaded")
	s.emit(ctx, "info", "Rooms preloaded", map[string]any{"count": len(seed)})
	return nil
}

func (s *BookingService) Ready(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.rooms.Ping(ctx)
}

func (s *BookingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// transitionFailed counts the failed transition and reports store errors.
// Business outcomes are returned to the caller untouched.
func (s *BookingService) transitionFailed(ctx context.Context, action Action, message, roomID string, err error) error {
	if isBusinessError(err) {
		metrics.IncTransition(string(action), metrics.OutcomeRejected)
		s.logger.Debug().Err(err).Str("room_id", roomID).Str("action", string(action)).Msg("transition rejected")
		return err
	}
	metrics.IncTransition(string(action), metrics.OutcomeError)
	s.storeFailure(ctx, message, roomID, err)
	return err
}

func (s *BookingService) storeFailure(ctx context.Context, message, roomID string, err error) {
	ev := s.logger.Error().Err(err)
	fields := map[string]any{"error": err.Error()}
	if roomID != "" {
		ev = ev.Str("room_id", roomID)
		fields["roomId"] = roomID
	}
	ev.Msg(message)
	s.emit(ctx, "error", message, fields)
}

func (s *BookingService) emit(ctx context.Context, level, message string, fields map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, level, message, fields)
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrValidation)
}

func validateRoomInput(input domain.RoomInput) error {
	if input.Number <= 0 {
		return &domain.ValidationError{Field: "number", Reason: "must be a positive integer"}
	}
	if strings.TrimSpace(input.Type) == "" {
		return &domain.ValidationError{Field: "type", Reason: "is required"}
	}
	if math.IsNaN(input.Price) || math.IsInf(input.Price, 0) || input.Price < 0 {
		return &domain.ValidationError{Field: "price", Reason: "must be a non-negative number"}
	}
	if input.Capacity <= 0 {
		return &domain.ValidationError{Field: "capacity", Reason: "must be a positive integer"}
	}
	if input.Status != "" && !input.Status.Valid() {
		return &domain.ValidationError{Field: "status", Reason: "must be free or reserved"}
	}
	return nil
}
