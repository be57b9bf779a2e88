package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// ServiceParams wires the subscription service dependencies.
type ServiceParams struct {
	Repo      Repository
	Logger    *logger.Logger
	TrialDays int
}

// Service owns subscription lifecycle transitions. Webhooks and admin
// overrides both funnel through here.
type Service struct {
	repo      Repository
	logg      *logger.Logger
	trialDays int
}

// NewService validates dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions: repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("subscriptions: logger is required")
	}
	if params.TrialDays <= 0 {
		params.TrialDays = 14
	}
	return &Service{
		repo:      params.Repo,
		logg:      params.Logger,
		trialDays: params.TrialDays,
	}, nil
}

// EnsureTrial creates the trial row for a new user. Idempotent: an existing
// row wins and is returned untouched.
func (s *Service) EnsureTrial(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	sub := &models.Subscription{
		UserID:      userID,
		Status:      enums.SubscriptionStatusTrial,
		TrialEndsAt: &trialEnd,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating trial subscription: %w", err)
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(ctx, "trial subscription created")
	return sub, nil
}

// AccessFor loads the subscription and derives the caller's entitlement.
func (s *Service) AccessFor(ctx context.Context, userID uuid.UUID, now time.Time) (Access, *models.Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err == ErrNotFound {
		return EvaluateAccess(nil, now), nil, nil
	}
	if err != nil {
		return Access{}, nil, err
	}
	return EvaluateAccess(sub, now), sub, nil
}

// ActivateFromProvider applies a payment-provider activation to the stored
// row. Called by the webhook handler after signature verification.
func (s *Service) ActivateFromProvider(ctx context.Context, userID uuid.UUID, razorpaySubscriptionID, razorpayCustomerID string, periodStart, periodEnd time.Time) (*models.Subscription, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err == ErrNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "no subscription row for user")
	}
	if err != nil {
		return nil, err
	}

	sub.Status = enums.SubscriptionStatusActive
	sub.CurrentPeriodStart = &periodStart
	sub.CurrentPeriodEnd = &periodEnd
	sub.RazorpaySubscriptionID = &razorpaySubscriptionID
	if razorpayCustomerID != "" {
		sub.RazorpayCustomerID = &razorpayCustomerID
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("activating subscription: %w", err)
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(ctx, "subscription activated")
	return sub, nil
}

// CancelFromProvider marks the row cancelled. Access persists until the
// current period end; EvaluateAccess handles that.
func (s *Service) CancelFromProvider(ctx context.Context, razorpaySubscriptionID string) (*models.Subscription, error) {
	sub, err := s.repo.GetByRazorpayID(ctx, razorpaySubscriptionID)
	if err == ErrNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "unknown provider subscription id")
	}
	if err != nil {
		return nil, err
	}

	sub.Status = enums.SubscriptionStatusCancelled
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("cancelling subscription: %w", err)
	}

	ctx = s.logg.WithUserID(ctx, sub.UserID.String())
	s.logg.Info(ctx, "subscription cancelled")
	return sub, nil
}

// AdminOverride forces a status, bypassing provider state. Used by operators
// for comped accounts and manual fixes.
func (s *Service) AdminOverride(ctx context.Context, userID uuid.UUID, status enums.SubscriptionStatus) (*models.Subscription, error) {
	if !status.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", status))
	}

	sub, err := s.repo.GetByUserID(ctx, userID)
	if err == ErrNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "no subscription row for user")
	}
	if err != nil {
		return nil, err
	}

	sub.Status = status
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("overriding subscription status: %w", err)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"status":  status.String(),
	})
	s.logg.Info(ctx, "subscription status overridden")
	return sub, nil
}
