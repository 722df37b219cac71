package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/google/uuid"
)

const roomColumns = `id, number, type, description, price, capacity, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var room models.Room
	var status string
	if err := row.Scan(&room.ID, &room.Number, &room.Type, &room.Description, &room.Price, &room.Capacity, &status); err != nil {
		return nil, err
	}
	room.Status = models.RoomStatus(status)
	return &room, nil
}

func (db *DB) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY seq`)
	if err != nil {
		return nil, domain.StoreError("list rooms", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, domain.StoreError("scan room", err)
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list rooms", err)
	}
	return rooms, nil
}

func (db *DB) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := scanRoom(db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, domain.StoreError("get room", err)
	}
	return room, nil
}

func (db *DB) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := insertRoom(ctx, db.DB, room); err != nil {
		return domain.StoreError("create room", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRoom(ctx context.Context, ex execer, room *models.Room) error {
	if room.Status == "" {
		room.Status = models.StatusFree
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := ex.ExecContext(ctx,
		`INSERT INTO rooms (id, number, type, description, price, capacity, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, room.Number, room.Type, room.Description, room.Price, room.Capacity, string(room.Status), now, now,
	)
	if err != nil {
		return err
	}
	room.ID = id
	return nil
}

func (db *DB) ReplaceRooms(ctx context.Context, rooms []models.Room) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("begin replace rooms", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return domain.StoreError("clear rooms", err)
	}
	for i := range rooms {
		room := rooms[i]
		if err := insertRoom(ctx, tx, &room); err != nil {
			return domain.StoreError("insert room", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StoreError("commit replace rooms", err)
	}
	return nil
}

// UpdateRoom writes the descriptive columns only, status stays as stored.
func (db *DB) UpdateRoom(ctx context.Context, room *models.Room) error {
	res, err := db.ExecContext(ctx,
		`UPDATE rooms SET number = ?, type = ?, description = ?, price = ?, capacity = ?, updated_at = ? WHERE id = ?`,
		room.Number, room.Type, room.Description, room.Price, room.Capacity, time.Now().UTC(), room.ID,
	)
	if err != nil {
		return domain.StoreError("update room", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.StoreError("update room", err)
	}
	if affected == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (db *DB) UpdateRoomStatusIf(ctx context.Context, id string, expected, next models.RoomStatus) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rooms SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(next), time.Now().UTC(), id, string(expected),
	)
	if err != nil {
		return false, domain.StoreError("update room status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StoreError("update room status", err)
	}
	return affected == 1, nil
}
