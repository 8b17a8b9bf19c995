package websocket

import "github.com/google/uuid"

// EventPublisher defines the interface for publishing events to WebSocket clients
type EventPublisher interface {
	// Publish sends an event to all connections of the specified user
	Publish(userID uuid.UUID, event Event)
	// PublishToReviewers sends an event to all loan officer and admin connections
	PublishToReviewers(event Event)
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the user
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.Broadcast(userID, event)
}

// PublishToReviewers implements EventPublisher
func (h *Hub) PublishToReviewers(event Event) {
	h.BroadcastToReviewers(event)
}

// NoOpPublisher is a publisher that does nothing (for testing or when WebSocket is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(userID uuid.UUID, event Event) {}

// PublishToReviewers does nothing
func (n *NoOpPublisher) PublishToReviewers(event Event) {}
