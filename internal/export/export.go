// Package export renders the payment ledger as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"hotelbooking/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	PaymentsSheet = "Payments"
	RoomsSheet    = "Rooms"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteLedger writes a workbook with the payments and the current catalog.
func WriteLedger(w io.Writer, payments []models.Payment, rooms []models.Room) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(PaymentsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(RoomsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	if err := writePayments(f, payments, rooms, header); err != nil {
		return err
	}
	if err := writeRooms(f, rooms, header); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writePayments(f *excelize.File, payments []models.Payment, rooms []models.Room, header int) error {
	numbers := make(map[string]int, len(rooms))
	for _, room := range rooms {
		numbers[room.ID] = room.Number
	}

	if err := writeRow(f, PaymentsSheet, 1, []interface{}{"Payment ID", "Room ID", "Room", "Amount", "Date"}); err != nil {
		return err
	}
	_ = f.SetCellStyle(PaymentsSheet, "A1", "E1", header)

	var total float64
	for i, p := range payments {
		var number interface{}
		if n, ok := numbers[p.RoomID]; ok {
			number = n
		}
		row := []interface{}{p.ID, p.RoomID, number, p.Amount, p.Date.UTC().Format("2006-01-02 15:04:05")}
		if err := writeRow(f, PaymentsSheet, i+2, row); err != nil {
			return err
		}
		total += p.Amount
	}

	totalRow := len(payments) + 2
	if err := writeRow(f, PaymentsSheet, totalRow, []interface{}{"Total", nil, nil, total}); err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(1, totalRow)
	end, _ := excelize.CoordinatesToCellName(4, totalRow)
	_ = f.SetCellStyle(PaymentsSheet, cell, end, header)

	_ = f.SetColWidth(PaymentsSheet, "A", "B", 38)
	_ = f.SetColWidth(PaymentsSheet, "C", "D", 12)
	_ = f.SetColWidth(PaymentsSheet, "E", "E", 20)
	return nil
}

func writeRooms(f *excelize.File, rooms []models.Room, header int) error {
	if err := writeRow(f, RoomsSheet, 1, []interface{}{"Room ID", "Number", "Type", "Price", "Capacity", "Status"}); err != nil {
		return err
	}
	_ = f.SetCellStyle(RoomsSheet, "A1", "F1", header)

	for i, room := range rooms {
		row := []interface{}{room.ID, room.Number, room.Type, room.Price, room.Capacity, string(room.Status)}
		if err := writeRow(f, RoomsSheet, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(RoomsSheet, "A", "A", 38)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}
