package models

import (
	"time"

	"github.com/google/uuid"
)

// OAuthToken is the stored Google credential pair for a user. Refreshed in
// place; deleted on disconnect or by the expired-token repair op.
type OAuthToken struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	AccessToken  string    `gorm:"column:access_token;not null"`
	RefreshToken string    `gorm:"column:refresh_token;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
