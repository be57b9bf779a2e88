package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

// AutomationSetting holds per-location posting automation state. The unique
// index on location_id is load-bearing: the dispatcher assumes exactly one
// row per location.
type AutomationSetting struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	LocationID string          `gorm:"column:location_id;not null;uniqueIndex:automation_settings_location_id_key"`
	UserID     uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Enabled    bool            `gorm:"column:enabled;not null;default:false"`
	Schedule   string          `gorm:"column:schedule;not null"` // "HH:MM" in the configured zone
	Frequency  enums.Frequency `gorm:"column:frequency;type:post_frequency;not null;default:'daily'"`
	LastRunAt  *time.Time      `gorm:"column:last_run_at"`

	BusinessName string `gorm:"column:business_name"`
	Category     string `gorm:"column:category"`
	Keywords     string `gorm:"column:keywords"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
