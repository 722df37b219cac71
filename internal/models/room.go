package models

// RoomStatus is the reservation state of a room.
type RoomStatus string

const (
	StatusFree     RoomStatus = "free"
	StatusReserved RoomStatus = "reserved"
)

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
	return s == StatusFree || s == StatusReserved
}

func (s RoomStatus) String() string {
	return string(s)
}

type Room struct {
	ID          string     `json:"id" yaml:"-"`
	Number      int        `json:"number" yaml:"number"`
	Type        string     `json:"type" yaml:"type"`
	Description string     `json:"description" yaml:"description"`
	Price       float64    `json:"price" yaml:"price"`
	Capacity    int        `json:"capacity" yaml:"capacity"`
	Status      RoomStatus `json:"status" yaml:"status"`
}
