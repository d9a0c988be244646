package queue

import (
	"context"

	"github.com/google/uuid"
)

// QueueUpdate is broadcast after a completion so that waiting
// patients can see their new position without polling.
type QueueUpdate struct {
	DoctorID    uuid.UUID      `json:"doctor_id"`
	CompletedID uuid.UUID      `json:"completed_id"`
	Renumbered  map[string]int `json:"renumbered"` // appointment id -> new turn
	Stats       *Stats         `json:"stats"`
}

// Notifier publishes queue updates to whatever realtime transport is
// wired in. Delivery is best effort: no replay, no acknowledgment.
type Notifier interface {
	QueueChanged(ctx context.Context, update QueueUpdate) error
}

// NopNotifier drops every update. Used where no transport is wired.
type NopNotifier struct{}

func (NopNotifier) QueueChanged(context.Context, QueueUpdate) error { return nil }
