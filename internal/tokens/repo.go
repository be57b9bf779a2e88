package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

// ErrNotFound is returned when a user has no stored Google credential.
var ErrNotFound = errors.New("oauth token not found")

// Repository is the persistence surface for stored Google credentials.
type Repository interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.OAuthToken, error)
	Upsert(ctx context.Context, token *models.OAuthToken) error
	Delete(ctx context.Context, userID uuid.UUID) error
	DeleteByUserIDs(ctx context.Context, userIDs []uuid.UUID) (int64, error)
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.OAuthToken, error)
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

func (r *gormRepository) Get(ctx context.Context, userID uuid.UUID) (*models.OAuthToken, error) {
	var token models.OAuthToken
	err := r.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Upsert writes the credential pair, replacing any previous one for the
// user. Refreshes go through here too.
func (r *gormRepository) Upsert(ctx context.Context, token *models.OAuthToken) error {
	return r.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "refresh_token", "expires_at", "updated_at",
			}),
		}).
		Create(token).Error
}

func (r *gormRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	result := r.conn.WithContext(ctx).
		Delete(&models.OAuthToken{}, "user_id = ?", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) DeleteByUserIDs(ctx context.Context, userIDs []uuid.UUID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result := r.conn.WithContext(ctx).
		Delete(&models.OAuthToken{}, "user_id IN ?", userIDs)
	return result.RowsAffected, result.Error
}

// ListExpiredBefore returns credentials whose access token expired before
// the cutoff. Rows with a refresh token are still usable; the caller decides.
func (r *gormRepository) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.OAuthToken, error) {
	var tokens []models.OAuthToken
	err := r.conn.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Order("expires_at ASC").
		Find(&tokens).Error
	return tokens, err
}
