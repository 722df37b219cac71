package models

const (
	// EventIndex default search index for shipped events
	EventIndex = "backend-logs"

	// EventQueueSize size of the in-memory event queue
	EventQueueSize = 1024

	// DefaultStoreTimeout upper bound for a single store call, in seconds
	DefaultStoreTimeout = 5

	// DefaultHTTPPort port of the REST API
	DefaultHTTPPort = 3000
	// DefaultGRPCPort port of the gRPC health service
	DefaultGRPCPort = 3001
)

// DefaultRooms is the demo catalog loaded at startup.
func DefaultRooms() []Room {
	return []Room{
		{Number: 101, Type: "personal", Description: "Habitación individual", Price: 50, Capacity: 1, Status: StatusFree},
		{Number: 102, Type: "doble", Description: "Habitación doble con WiFi", Price: 100, Capacity: 2, Status: StatusFree},
		{Number: 103, Type: "matrimonial", Description: "Habitación matrimonial con cama king size", Price: 150, Capacity: 2, Status: StatusFree},
		{Number: 104, Type: "quin", Description: "Habitación para 5 personas, ideal para familia", Price: 200, Capacity: 5, Status: StatusFree},
	}
}
