package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

// UserView is the safe projection of a user row.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserView(user *models.User) UserView {
	return UserView{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}

// SettingView is the API projection of an automation setting.
type SettingView struct {
	ID           uuid.UUID  `json:"id"`
	LocationID   string     `json:"locationId"`
	Enabled      bool       `json:"enabled"`
	Schedule     string     `json:"schedule"`
	Frequency    string     `json:"frequency"`
	BusinessName string     `json:"businessName"`
	Category     string     `json:"category"`
	Keywords     string     `json:"keywords"`
	LastRunAt    *time.Time `json:"lastRunAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func newSettingView(setting *models.AutomationSetting) SettingView {
	return SettingView{
		ID:           setting.ID,
		LocationID:   setting.LocationID,
		Enabled:      setting.Enabled,
		Schedule:     setting.Schedule,
		Frequency:    string(setting.Frequency),
		BusinessName: setting.BusinessName,
		Category:     setting.Category,
		Keywords:     setting.Keywords,
		LastRunAt:    setting.LastRunAt,
		CreatedAt:    setting.CreatedAt,
		UpdatedAt:    setting.UpdatedAt,
	}
}

func newSettingViews(settings []models.AutomationSetting) []SettingView {
	views := make([]SettingView, 0, len(settings))
	for i := range settings {
		views = append(views, newSettingView(&settings[i]))
	}
	return views
}

// SubscriptionView exposes the billing fields the frontend renders.
type SubscriptionView struct {
	Status             string     `json:"status"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd"`
	ProfileCount       int        `json:"profileCount"`
}

func newSubscriptionView(sub *models.Subscription) *SubscriptionView {
	if sub == nil {
		return nil
	}
	return &SubscriptionView{
		Status:             string(sub.Status),
		TrialEndsAt:        sub.TrialEndsAt,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		ProfileCount:       sub.ProfileCount,
	}
}

// RunView is the API projection of a post run.
type RunView struct {
	ID         uuid.UUID `json:"id"`
	LocationID string    `json:"locationId"`
	UserID     uuid.UUID `json:"userId"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	PostedAt   time.Time `json:"postedAt"`
}

func newRunViews(runs []models.PostRun) []RunView {
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, RunView{
			ID:         run.ID,
			LocationID: run.LocationID,
			UserID:     run.UserID,
			Status:     string(run.Status),
			ErrorCode:  run.ErrorCode,
			Summary:    run.Summary,
			PostedAt:   run.PostedAt,
		})
	}
	return views
}
