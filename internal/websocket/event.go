package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated  EventType = "created"
	EventTypeUpdated  EventType = "updated"
	EventTypeApproved EventType = "approved"
	EventTypeRejected EventType = "rejected"
	EventTypePaid     EventType = "paid"
	EventTypePaidOff  EventType = "paid_off"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeLoanApplication EntityType = "loan_application"
	EntityTypeRepayment       EntityType = "repayment"
	EntityTypeDocument        EntityType = "document"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "loan_application.approved"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "loan_application"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LoanApplicationCreated creates a loan_application.created event
func LoanApplicationCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeLoanApplication, payload)
}

// LoanApplicationUpdated creates a loan_application.updated event
func LoanApplicationUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeLoanApplication, payload)
}

// LoanApplicationApproved creates a loan_application.approved event
func LoanApplicationApproved(payload interface{}) Event {
	return NewEvent(EventTypeApproved, EntityTypeLoanApplication, payload)
}

// LoanApplicationRejected creates a loan_application.rejected event
func LoanApplicationRejected(payload interface{}) Event {
	return NewEvent(EventTypeRejected, EntityTypeLoanApplication, payload)
}

// LoanApplicationPaidOff creates a loan_application.paid_off event
func LoanApplicationPaidOff(payload interface{}) Event {
	return NewEvent(EventTypePaidOff, EntityTypeLoanApplication, payload)
}

// RepaymentPaid creates a repayment.paid event
func RepaymentPaid(payload interface{}) Event {
	return NewEvent(EventTypePaid, EntityTypeRepayment, payload)
}

// DocumentCreated creates a document.created event
func DocumentCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeDocument, payload)
}
