package razorpay

import (
	"encoding/json"
	"fmt"
)

// Event types the backend reacts to. Everything else is acknowledged and
// dropped so Razorpay stops redelivering.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCharged   = "subscription.charged"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// Event is the decoded webhook envelope.
type Event struct {
	ID           string
	Type         string
	Subscription SubscriptionEntity
}

// SubscriptionEntity is the nested subscription payload.
type SubscriptionEntity struct {
	ID           string
	CustomerID   string
	Status       string
	CurrentStart int64
	CurrentEnd   int64
	UserID       string // from notes.user_id, set at checkout
}

type wireEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Subscription struct {
			Entity struct {
				ID           string `json:"id"`
				CustomerID   string `json:"customer_id"`
				Status       string `json:"status"`
				CurrentStart int64  `json:"current_start"`
				CurrentEnd   int64  `json:"current_end"`
				Notes        struct {
					UserID string `json:"user_id"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// ParseEvent decodes the raw webhook body.
func ParseEvent(rawBody []byte) (*Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(rawBody, &wire); err != nil {
		return nil, fmt.Errorf("decoding webhook event: %w", err)
	}
	if wire.Event == "" {
		return nil, fmt.Errorf("webhook event missing type")
	}

	entity := wire.Payload.Subscription.Entity
	return &Event{
		ID:   wire.ID,
		Type: wire.Event,
		Subscription: SubscriptionEntity{
			ID:           entity.ID,
			CustomerID:   entity.CustomerID,
			Status:       entity.Status,
			CurrentStart: entity.CurrentStart,
			CurrentEnd:   entity.CurrentEnd,
			UserID:       entity.Notes.UserID,
		},
	}, nil
}
