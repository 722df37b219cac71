package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type RoomsFile struct {
	Rooms []models.Room `yaml:"rooms"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run upserts rooms by number into a SQLite catalog without touching status.
func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		roomsPath = flag.String("rooms", "configs/rooms.yaml", "path to rooms.yaml")
		dbPath    = flag.String("db", "./data/hotel.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*roomsPath)
	if err != nil {
		return fmt.Errorf("read rooms: %w", err)
	}
	var file RoomsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse rooms: %w", err)
	}
	if len(file.Rooms) == 0 {
		return fmt.Errorf("no rooms in yaml")
	}
	if err = config.ValidateSeedRooms(file.Rooms); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := db.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	byNumber := make(map[int]models.Room, len(existing))
	for _, room := range existing {
		byNumber[room.Number] = room
	}

	created := 0
	updated := 0
	for i := range file.Rooms {
		room := file.Rooms[i]
		if room.Number <= 0 {
			continue
		}
		if current, ok := byNumber[room.Number]; ok {
			room.ID = current.ID
			if err = db.UpdateRoom(ctx, &room); err != nil {
				return fmt.Errorf("update %d: %w", room.Number, err)
			}
			updated++
			continue
		}
		if err = db.CreateRoom(ctx, &room); err != nil {
			return fmt.Errorf("create %d: %w", room.Number, err)
		}
		byNumber[room.Number] = room
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
