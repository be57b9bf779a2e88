package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/internal/billing"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// BackfillPlan describes one subscription whose period end would be filled
// from the payment provider.
type BackfillPlan struct {
	SubscriptionID         uuid.UUID `json:"subscriptionId"`
	UserID                 uuid.UUID `json:"userId"`
	RazorpaySubscriptionID string    `json:"razorpaySubscriptionId"`
	ProviderStatus         string    `json:"providerStatus"`
	PeriodStart            time.Time `json:"periodStart"`
	PeriodEnd              time.Time `json:"periodEnd"`
}

// Backfill fills missing subscription end dates from the payment provider.
// Rows without an end date gate users out as soon as their stored status
// stops matching reality; this op repairs them.
type Backfill struct {
	repo    subscriptions.Repository
	billing billing.Client
	logg    *logger.Logger
}

// NewBackfill builds the op.
func NewBackfill(repo subscriptions.Repository, billingClient billing.Client, logg *logger.Logger) (*Backfill, error) {
	if repo == nil {
		return nil, fmt.Errorf("repair: subscriptions repository is required")
	}
	if billingClient == nil {
		return nil, fmt.Errorf("repair: billing client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("repair: logger is required")
	}
	return &Backfill{repo: repo, billing: billingClient, logg: logg}, nil
}

// Plan fetches provider state for every row missing an end date. Rows the
// provider no longer reports as billable are skipped with a log line; the
// webhook or an admin override owns those transitions.
func (b *Backfill) Plan(ctx context.Context) ([]BackfillPlan, error) {
	rows, err := b.repo.ListMissingEndDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rows missing end dates: %w", err)
	}

	var plans []BackfillPlan
	for _, row := range rows {
		if row.RazorpaySubscriptionID == nil {
			continue
		}
		provider, err := b.billing.FetchSubscription(ctx, *row.RazorpaySubscriptionID)
		if err != nil {
			rowCtx := b.logg.WithUserID(ctx, row.UserID.String())
			b.logg.Error(rowCtx, "provider fetch failed, row skipped", err)
			continue
		}
		if !provider.Active() || provider.CurrentPeriodEnd.IsZero() {
			rowCtx := b.logg.WithFields(ctx, map[string]any{
				"user_id":         row.UserID.String(),
				"provider_status": provider.Status,
			})
			b.logg.Warn(rowCtx, "provider reports non-billable subscription, row skipped")
			continue
		}
		plans = append(plans, BackfillPlan{
			SubscriptionID:         row.ID,
			UserID:                 row.UserID,
			RazorpaySubscriptionID: provider.ID,
			ProviderStatus:         provider.Status,
			PeriodStart:            provider.CurrentPeriodStart,
			PeriodEnd:              provider.CurrentPeriodEnd,
		})
	}
	return plans, nil
}

// Apply writes the planned period bounds.
func (b *Backfill) Apply(ctx context.Context, plans []BackfillPlan) (int, error) {
	applied := 0
	for _, plan := range plans {
		row, err := b.repo.GetByUserID(ctx, plan.UserID)
		if err != nil {
			return applied, fmt.Errorf("loading subscription for user %s: %w", plan.UserID, err)
		}
		start := plan.PeriodStart
		end := plan.PeriodEnd
		row.CurrentPeriodStart = &start
		row.CurrentPeriodEnd = &end
		if err := b.repo.Update(ctx, row); err != nil {
			return applied, fmt.Errorf("updating subscription %s: %w", plan.SubscriptionID, err)
		}
		applied++
	}
	if applied > 0 {
		ctx = b.logg.WithField(ctx, "applied", applied)
		b.logg.Info(ctx, "subscription end dates backfilled")
	}
	return applied, nil
}
