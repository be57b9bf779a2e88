package subscriptions

import (
	"time"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

// Access is the derived entitlement for a user at one instant. The stored
// status alone is never trusted; dates always participate.
type Access struct {
	Status          enums.SubscriptionStatus `json:"status"`
	CanUsePlatform  bool                     `json:"canUsePlatform"`
	RequiresPayment bool                     `json:"requiresPayment"`
	DaysRemaining   int                      `json:"daysRemaining"`
}

// EvaluateAccess derives entitlement from the subscription row and the
// current instant. A nil subscription means the user never got a trial row,
// which is treated as expired.
func EvaluateAccess(sub *models.Subscription, now time.Time) Access {
	if sub == nil {
		return Access{
			Status:          enums.SubscriptionStatusExpired,
			RequiresPayment: true,
		}
	}

	switch sub.Status {
	case enums.SubscriptionStatusAdmin:
		return Access{
			Status:         enums.SubscriptionStatusAdmin,
			CanUsePlatform: true,
		}

	case enums.SubscriptionStatusTrial:
		if sub.TrialEndsAt == nil || !now.Before(*sub.TrialEndsAt) {
			return Access{
				Status:          enums.SubscriptionStatusExpired,
				RequiresPayment: true,
			}
		}
		return Access{
			Status:         enums.SubscriptionStatusTrial,
			CanUsePlatform: true,
			DaysRemaining:  daysUntil(now, *sub.TrialEndsAt),
		}

	case enums.SubscriptionStatusActive:
		if sub.CurrentPeriodEnd == nil || !now.Before(*sub.CurrentPeriodEnd) {
			return Access{
				Status:          enums.SubscriptionStatusExpired,
				RequiresPayment: true,
			}
		}
		return Access{
			Status:         enums.SubscriptionStatusActive,
			CanUsePlatform: true,
			DaysRemaining:  daysUntil(now, *sub.CurrentPeriodEnd),
		}

	case enums.SubscriptionStatusCancelled:
		// A cancelled subscription keeps access until the paid period ends.
		if sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd) {
			return Access{
				Status:         enums.SubscriptionStatusCancelled,
				CanUsePlatform: true,
				DaysRemaining:  daysUntil(now, *sub.CurrentPeriodEnd),
			}
		}
		return Access{
			Status:          enums.SubscriptionStatusCancelled,
			RequiresPayment: true,
		}

	default:
		return Access{
			Status:          enums.SubscriptionStatusExpired,
			RequiresPayment: true,
		}
	}
}

// daysUntil rounds up so a trial with one hour left still reports one day.
// Never negative.
func daysUntil(now, deadline time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	return days
}
