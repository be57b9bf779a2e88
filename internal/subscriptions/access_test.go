package subscriptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

func ptr[T any](v T) *T { return &v }

func TestEvaluateAccess(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sub  *models.Subscription
		want Access
	}{
		{
			name: "nil subscription is expired",
			sub:  nil,
			want: Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true},
		},
		{
			name: "admin bypasses everything",
			sub:  &models.Subscription{Status: enums.SubscriptionStatusAdmin},
			want: Access{Status: enums.SubscriptionStatusAdmin, CanUsePlatform: true},
		},
		{
			name: "trial with time left",
			sub: &models.Subscription{
				Status:      enums.SubscriptionStatusTrial,
				TrialEndsAt: ptr(now.Add(5*24*time.Hour + time.Hour)),
			},
			want: Access{Status: enums.SubscriptionStatusTrial, CanUsePlatform: true, DaysRemaining: 6},
		},
		{
			name: "trial past its end derives expired",
			sub: &models.Subscription{
				Status:      enums.SubscriptionStatusTrial,
				TrialEndsAt: ptr(now.Add(-time.Minute)),
			},
			want: Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true},
		},
		{
			name: "trial with no end date is expired",
			sub:  &models.Subscription{Status: enums.SubscriptionStatusTrial},
			want: Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true},
		},
		{
			name: "active inside period",
			sub: &models.Subscription{
				Status:           enums.SubscriptionStatusActive,
				CurrentPeriodEnd: ptr(now.Add(30 * 24 * time.Hour)),
			},
			want: Access{Status: enums.SubscriptionStatusActive, CanUsePlatform: true, DaysRemaining: 30},
		},
		{
			name: "active past period end derives expired",
			sub: &models.Subscription{
				Status:           enums.SubscriptionStatusActive,
				CurrentPeriodEnd: ptr(now.Add(-time.Hour)),
			},
			want: Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true},
		},
		{
			name: "cancelled keeps access until period end",
			sub: &models.Subscription{
				Status:           enums.SubscriptionStatusCancelled,
				CurrentPeriodEnd: ptr(now.Add(48 * time.Hour)),
			},
			want: Access{Status: enums.SubscriptionStatusCancelled, CanUsePlatform: true, DaysRemaining: 2},
		},
		{
			name: "cancelled after period end requires payment",
			sub: &models.Subscription{
				Status:           enums.SubscriptionStatusCancelled,
				CurrentPeriodEnd: ptr(now.Add(-time.Hour)),
			},
			want: Access{Status: enums.SubscriptionStatusCancelled, RequiresPayment: true},
		},
		{
			name: "stored expired status",
			sub:  &models.Subscription{Status: enums.SubscriptionStatusExpired},
			want: Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateAccess(tc.sub, now))
		})
	}
}

func TestDaysUntilRoundsUp(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, daysUntil(now, now.Add(time.Hour)))
	assert.Equal(t, 1, daysUntil(now, now.Add(24*time.Hour)))
	assert.Equal(t, 2, daysUntil(now, now.Add(25*time.Hour)))
	assert.Equal(t, 0, daysUntil(now, now))
	assert.Equal(t, 0, daysUntil(now, now.Add(-time.Hour)))
}
