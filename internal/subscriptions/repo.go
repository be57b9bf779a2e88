package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

// ErrNotFound is returned when no subscription row exists for the lookup.
var ErrNotFound = errors.New("subscription not found")

// Repository is the persistence surface for subscription rows.
type Repository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetByRazorpayID(ctx context.Context, razorpaySubscriptionID string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	ListMissingEndDates(ctx context.Context) ([]models.Subscription, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	WithTx(tx *gorm.DB) Repository
}

type gormRepository struct {
	conn *gorm.DB
}

// NewRepository builds the GORM-backed repository.
func NewRepository(conn *gorm.DB) Repository {
	return &gormRepository{conn: conn}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{conn: tx}
}

func (r *gormRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetByRazorpayID(ctx context.Context, razorpaySubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.conn.WithContext(ctx).
		Where("razorpay_subscription_id = ?", razorpaySubscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.conn.WithContext(ctx).Create(sub).Error
}

func (r *gormRepository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.conn.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Select("status", "trial_ends_at", "current_period_start", "current_period_end",
			"profile_count", "razorpay_subscription_id", "razorpay_customer_id").
		Updates(sub).Error
}

// ListMissingEndDates finds active rows whose period end was never recorded,
// the rows the backfill repair op reconciles against the payment provider.
func (r *gormRepository) ListMissingEndDates(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.conn.WithContext(ctx).
		Where("status = ?", "active").
		Where("current_period_end IS NULL").
		Where("razorpay_subscription_id IS NOT NULL").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.conn.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
