package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	client := newMockClient("client-1", userID, false)
	hub.Register(client)

	var publisher EventPublisher = hub
	publisher.Publish(userID, RepaymentPaid(map[string]interface{}{"id": float64(42)}))

	assert.Eventually(t, messageCount(client), time.Second, 5*time.Millisecond)
	assert.Len(t, client.GetMessages(), 1)
}

func TestHub_PublishToReviewers(t *testing.T) {
	hub := NewHub()
	officer := newMockClient("officer", uuid.New(), true)
	hub.Register(officer)

	var publisher EventPublisher = hub
	publisher.PublishToReviewers(LoanApplicationCreated(map[string]interface{}{"id": float64(1)}))

	assert.Eventually(t, messageCount(officer), time.Second, 5*time.Millisecond)
}

func TestNoOpPublisher_Publish(t *testing.T) {
	publisher := &NoOpPublisher{}

	assert.NotPanics(t, func() {
		publisher.Publish(uuid.New(), RepaymentPaid(nil))
		publisher.PublishToReviewers(LoanApplicationCreated(nil))
	})
}

func TestNoOpPublisher_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*NoOpPublisher)(nil)
}
