package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

// Subscription persists billing state per user. One row per user, created
// as a trial at registration and mutated by webhooks or admin overrides.
type Subscription struct {
	ID     uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:subscriptions_user_id_key"`
	Status enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'trial'"`

	TrialEndsAt        *time.Time `gorm:"column:trial_ends_at"`
	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"`
	ProfileCount       int        `gorm:"column:profile_count;not null;default:1"`

	RazorpaySubscriptionID *string `gorm:"column:razorpay_subscription_id;index"`
	RazorpayCustomerID     *string `gorm:"column:razorpay_customer_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
