package billing

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/sethvargo/go-retry"

	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// ProviderSubscription is the subset of Razorpay subscription state the
// backend consumes. Period bounds arrive as epoch seconds on the wire.
type ProviderSubscription struct {
	ID                 string
	Status             string
	CustomerID         string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// Active reports whether the provider considers the subscription billable.
func (p *ProviderSubscription) Active() bool {
	return p.Status == "active" || p.Status == "authenticated"
}

// Client fetches subscription state from the payment provider.
type Client interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
}

// ClientParams wires the Razorpay client.
type ClientParams struct {
	Config config.RazorpayConfig
	Logger *logger.Logger
}

type razorpayClient struct {
	api  *razorpay.Client
	logg *logger.Logger
}

// NewClient validates credentials and builds the Razorpay-backed client.
func NewClient(params ClientParams) (Client, error) {
	if params.Config.KeyID == "" || params.Config.KeySecret == "" {
		return nil, fmt.Errorf("billing: razorpay credentials are required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("billing: logger is required")
	}
	return &razorpayClient{
		api:  razorpay.NewClient(params.Config.KeyID, params.Config.KeySecret),
		logg: params.Logger,
	}, nil
}

// FetchSubscription reads the current subscription record. Transient
// failures are retried with backoff; the SDK has no context support so the
// retry loop enforces the deadline.
func (c *razorpayClient) FetchSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	var raw map[string]interface{}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := c.api.Subscription.Fetch(subscriptionID, nil, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		raw = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching razorpay subscription %s: %w", subscriptionID, err)
	}

	return parseSubscription(raw)
}

func parseSubscription(raw map[string]interface{}) (*ProviderSubscription, error) {
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("razorpay subscription payload missing id")
	}

	sub := &ProviderSubscription{ID: id}
	if status, ok := raw["status"].(string); ok {
		sub.Status = status
	}
	if customerID, ok := raw["customer_id"].(string); ok {
		sub.CustomerID = customerID
	}
	if start, ok := epochField(raw, "current_start"); ok {
		sub.CurrentPeriodStart = start
	}
	if end, ok := epochField(raw, "current_end"); ok {
		sub.CurrentPeriodEnd = end
	}
	return sub, nil
}

// epochField reads an epoch-seconds value that the JSON decoder may have
// produced as float64 or json.Number-like int64.
func epochField(raw map[string]interface{}, key string) (time.Time, bool) {
	switch v := raw[key].(type) {
	case float64:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		if v <= 0 {
			return time.Time{}, false
		}
		return time.Unix(v, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
