package state

import (
	"time"

	"github.com/google/uuid"
)

// Sink is the write side of a live socket. Send must not block.
type Sink interface {
	ID() uuid.UUID
	Send(payload []byte) error
	Close(err error)
}

// representation of a single transport-layer connection.
type Connection struct {
	ID        uuid.UUID
	UserID    string
	IPAddress string
	Transport Sink
	CreatedAt time.Time
}

// NewConnection builds a registry entry for a transport owned by userID.
func NewConnection(userID, ipAddr string, sink Sink) *Connection {
	return &Connection{
		ID:        sink.ID(),
		UserID:    userID,
		IPAddress: ipAddr,
		Transport: sink,
		CreatedAt: time.Now(),
	}
}

// aggregates every live connection of one user.
type User struct {
	ID          string
	Connections map[uuid.UUID]*Connection
	OnlineSince time.Time
}
