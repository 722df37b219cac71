package models

import "time"

type Payment struct {
	ID     string    `json:"id"`
	RoomID string    `json:"roomId"`
	Amount float64   `json:"amount"`
	Date   time.Time `json:"date"`
}
