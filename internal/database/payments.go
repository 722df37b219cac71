package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"

	"github.com/google/uuid"
)

// RecordPayment flips the room to free and appends the payment inside one
// transaction, so neither write survives without the other.
func (db *DB) RecordPayment(ctx context.Context, payment *models.Payment, expected models.RoomStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("begin payment", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM rooms WHERE id = ?`, payment.RoomID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return domain.StoreError("load room for payment", err)
	}
	if expected != "" && models.RoomStatus(status) != expected {
		return domain.ErrInvalidState
	}

	if payment.Date.IsZero() {
		payment.Date = time.Now().UTC()
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (id, room_id, amount, date) VALUES (?, ?, ?, ?)`,
		id, payment.RoomID, payment.Amount, payment.Date.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return domain.StoreError("insert payment", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, updated_at = ? WHERE id = ?`,
		string(models.StatusFree), time.Now().UTC(), payment.RoomID,
	); err != nil {
		return domain.StoreError("free room", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.StoreError("commit payment", err)
	}
	payment.ID = id
	return nil
}

func (db *DB) ListPayments(ctx context.Context) ([]models.Payment, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, room_id, amount, date FROM payments ORDER BY seq`)
	if err != nil {
		return nil, domain.StoreError("list payments", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var dateStr string
		if err := rows.Scan(&p.ID, &p.RoomID, &p.Amount, &dateStr); err != nil {
			return nil, domain.StoreError("scan payment", err)
		}
		p.Date, err = time.Parse(time.RFC3339Nano, dateStr)
		if err != nil {
			return nil, domain.StoreError("parse payment date", fmt.Errorf("%s: %w", dateStr, err))
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list payments", err)
	}
	return payments, nil
}
