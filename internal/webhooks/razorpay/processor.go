package razorpay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// idempotencyTTL bounds how long a processed event id blocks redelivery.
// Razorpay retries for at most 24 hours.
const idempotencyTTL = 48 * time.Hour

// IdempotencyStore marks event ids as processed. Backed by Redis SETNX.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// ProcessorParams wires the webhook processor.
type ProcessorParams struct {
	Subscriptions *subscriptions.Service
	Store         IdempotencyStore
	Logger        *logger.Logger
	WebhookSecret string
}

// Processor verifies, deduplicates, and applies Razorpay webhook events.
type Processor struct {
	subs   *subscriptions.Service
	store  IdempotencyStore
	logg   *logger.Logger
	secret string
}

// NewProcessor validates dependencies and builds the processor.
func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("webhooks: subscriptions service is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("webhooks: idempotency store is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("webhooks: logger is required")
	}
	if params.WebhookSecret == "" {
		return nil, fmt.Errorf("webhooks: webhook secret is required")
	}
	return &Processor{
		subs:   params.Subscriptions,
		store:  params.Store,
		logg:   params.Logger,
		secret: params.WebhookSecret,
	}, nil
}

// Process handles one delivery. The signature gate runs before anything
// else; a replayed or duplicate event acknowledges without side effects.
func (p *Processor) Process(ctx context.Context, rawBody []byte, signature string) error {
	if !VerifySignature(rawBody, signature, p.secret) {
		return apperrors.New(apperrors.CodeUnauthorized, "invalid webhook signature")
	}

	event, err := ParseEvent(rawBody)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, err, "malformed webhook body")
	}

	ctx = p.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	if event.ID != "" {
		key := p.store.IdempotencyKey("razorpay", event.ID)
		fresh, err := p.store.SetNX(ctx, key, 1, idempotencyTTL)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			p.logg.Info(ctx, "duplicate webhook delivery ignored")
			return nil
		}
	}

	switch event.Type {
	case EventSubscriptionActivated, EventSubscriptionCharged:
		return p.applyActivation(ctx, event)
	case EventSubscriptionCancelled:
		_, err := p.subs.CancelFromProvider(ctx, event.Subscription.ID)
		return err
	default:
		p.logg.Info(ctx, "unhandled webhook event type ignored")
		return nil
	}
}

func (p *Processor) applyActivation(ctx context.Context, event *Event) error {
	entity := event.Subscription
	if entity.UserID == "" {
		return apperrors.New(apperrors.CodeValidation, "activation event missing user id note")
	}
	userID, err := uuid.Parse(entity.UserID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, err, "activation event has malformed user id")
	}

	periodStart := time.Unix(entity.CurrentStart, 0).UTC()
	periodEnd := time.Unix(entity.CurrentEnd, 0).UTC()
	if entity.CurrentEnd <= 0 {
		return apperrors.New(apperrors.CodeValidation, "activation event missing period end")
	}

	_, err = p.subs.ActivateFromProvider(ctx, userID, entity.ID, entity.CustomerID, periodStart, periodEnd)
	return err
}
