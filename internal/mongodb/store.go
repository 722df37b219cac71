// Package mongodb stores the room catalog and the payment ledger in MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection    = "rooms"
	paymentsCollection = "payments"
)

type roomDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Number      int                `bson:"number"`
	Type        string             `bson:"type"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Capacity    int                `bson:"capacity"`
	Status      string             `bson:"status"`
}

type paymentDoc struct {
	ID     primitive.ObjectID `bson:"_id"`
	RoomID string             `bson:"roomId"`
	Amount float64            `bson:"amount"`
	Date   time.Time          `bson:"date"`
}

type Store struct {
	client       *mongo.Client
	rooms        *mongo.Collection
	payments     *mongo.Collection
	transactions bool
	logger       *zerolog.Logger
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg config.MongoConfig, logger *zerolog.Logger) (*Store, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Bool("transactions", cfg.Transactions).Msg("mongodb connected")
	return newStore(client, client.Database(cfg.Database), cfg.Transactions, logger), nil
}

func newStore(client *mongo.Client, db *mongo.Database, transactions bool, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{
		client:       client,
		rooms:        db.Collection(roomsCollection),
		payments:     db.Collection(paymentsCollection),
		transactions: transactions,
		logger:       logger,
	}
}

func (s *Store) ListRooms(ctx context.Context) ([]models.Room, error) {
	cursor, err := s.rooms.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, domain.StoreError("mongo list rooms", err)
	}
	defer cursor.Close(ctx)

	var docs []roomDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StoreError("mongo list rooms", err)
	}

	rooms := make([]models.Room, 0, len(docs))
	for _, doc := range docs {
		rooms = append(rooms, doc.toModel())
	}
	return rooms, nil
}

func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrRoomNotFound
	}

	var doc roomDoc
	if err := s.rooms.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, domain.StoreError("mongo get room", err)
	}
	room := doc.toModel()
	return &room, nil
}

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	doc := newRoomDoc(*room)
	if _, err := s.rooms.InsertOne(ctx, doc); err != nil {
		return domain.StoreError("mongo create room", err)
	}
	room.ID = doc.ID.Hex()
	room.Status = models.RoomStatus(doc.Status)
	return nil
}

func (s *Store) ReplaceRooms(ctx context.Context, rooms []models.Room) error {
	replace := func(ctx context.Context) error {
		if _, err := s.rooms.DeleteMany(ctx, bson.M{}); err != nil {
			return err
		}
		if len(rooms) == 0 {
			return nil
		}
		docs := make([]interface{}, 0, len(rooms))
		for _, room := range rooms {
			docs = append(docs, newRoomDoc(room))
		}
		_, err := s.rooms.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
		return err
	}

	if err := s.run(ctx, replace); err != nil {
		return domain.StoreError("mongo replace rooms", err)
	}
	return nil
}

func (s *Store) UpdateRoom(ctx context.Context, room *models.Room) error {
	oid, err := primitive.ObjectIDFromHex(room.ID)
	if err != nil {
		return domain.ErrRoomNotFound
	}

	res, err := s.rooms.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"number":      room.Number,
		"type":        room.Type,
		"description": room.Description,
		"price":       room.Price,
		"capacity":    room.Capacity,
	}})
	if err != nil {
		return domain.StoreError("mongo update room", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// UpdateRoomStatusIf relies on a single-document update matching both id and
// status, which MongoDB applies atomically.
func (s *Store) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(expected)},
		bson.M{"$set": bson.M{"status": string(next)}},
	)
	if err != nil {
		return false, domain.StoreError("mongo update status", err)
	}
	return res.ModifiedCount == 1, nil
}

// RecordPayment appends the payment and frees the room. Without transactions
// the ledger entry is written first so a crash never frees an unpaid room.
func (s *Store) RecordPayment(ctx context.Context, payment *models.Payment, expected models.RoomStatus) error {
	oid, err := primitive.ObjectIDFromHex(payment.RoomID)
	if err != nil {
		return domain.ErrRoomNotFound
	}

	doc := paymentDoc{
		ID:     primitive.NewObjectID(),
		RoomID: payment.RoomID,
		Amount: payment.Amount,
		Date:   payment.Date,
	}
	if doc.Date.IsZero() {
		doc.Date = time.Now().UTC()
	}

	record := func(ctx context.Context) error {
		var room roomDoc
		if err := s.rooms.FindOne(ctx, bson.M{"_id": oid}).Decode(&room); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return domain.ErrRoomNotFound
			}
			return err
		}
		if expected != "" && room.Status != string(expected) {
			return domain.ErrInvalidState
		}
		if _, err := s.payments.InsertOne(ctx, doc); err != nil {
			return err
		}
		res, err := s.rooms.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": string(models.StatusFree)}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			// room removed after the read; a transaction rolls the insert back
			if !s.transactions {
				if _, err := s.payments.DeleteOne(ctx, bson.M{"_id": doc.ID}); err != nil {
					s.logger.Warn().Err(err).Str("payment_id", doc.ID.Hex()).Msg("orphaned payment left in ledger")
				}
			}
			return domain.ErrRoomNotFound
		}
		return nil
	}

	if err := s.run(ctx, record); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrInvalidState) {
			return err
		}
		return domain.StoreError("mongo record payment", err)
	}

	payment.ID = doc.ID.Hex()
	payment.Date = doc.Date
	return nil
}

func (s *Store) ListPayments(ctx context.Context) ([]models.Payment, error) {
	cursor, err := s.payments.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, domain.StoreError("mongo list payments", err)
	}
	defer cursor.Close(ctx)

	var docs []paymentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StoreError("mongo list payments", err)
	}

	payments := make([]models.Payment, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, models.Payment{
			ID:     doc.ID.Hex(),
			RoomID: doc.RoomID,
			Amount: doc.Amount,
			Date:   doc.Date.UTC(),
		})
	}
	return payments, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return domain.StoreError("mongo ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// run executes fn inside a transaction when the deployment supports them.
func (s *Store) run(ctx context.Context, fn func(context.Context) error) error {
	if !s.transactions {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func newRoomDoc(room models.Room) roomDoc {
	status := room.Status
	if status == "" {
		status = models.StatusFree
	}
	return roomDoc{
		ID:          primitive.NewObjectID(),
		Number:      room.Number,
		Type:        room.Type,
		Description: room.Description,
		Price:       room.Price,
		Capacity:    room.Capacity,
		Status:      string(status),
	}
}

func (d roomDoc) toModel() models.Room {
	return models.Room{
		ID:          d.ID.Hex(),
		Number:      d.Number,
		Type:        d.Type,
		Description: d.Description,
		Price:       d.Price,
		Capacity:    d.Capacity,
		Status:      models.RoomStatus(d.Status),
	}
}
