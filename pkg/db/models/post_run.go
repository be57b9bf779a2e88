package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

// PostRun records one trigger attempt against the posting API, success or
// failure. Admin reporting reads these; the dispatcher only appends.
type PostRun struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LocationID string              `gorm:"column:location_id;not null;index"`
	UserID     uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status     enums.PostRunStatus `gorm:"column:status;type:post_run_status;not null"`
	ErrorCode  string              `gorm:"column:error_code"`
	Summary    string              `gorm:"column:summary"`
	PostedAt   time.Time           `gorm:"column:posted_at;not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}
