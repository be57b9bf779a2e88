package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/users"
	pkgauth "github.com/postpilotapp/postpilot-backend/pkg/auth"
	"github.com/postpilotapp/postpilot-backend/pkg/auth/session"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/mailer"
	"github.com/postpilotapp/postpilot-backend/pkg/security"
)

const minPasswordLength = 8

// TokenPair is the credential set returned to a client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Sessions is the refresh-session surface the service depends on.
type Sessions interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams wires the auth service dependencies.
type ServiceParams struct {
	Users         users.Repository
	Subscriptions *subscriptions.Service
	Sessions      Sessions
	Logger        *logger.Logger
	Mailer        mailer.Mailer
	JWT           config.JWTConfig
	Password      config.PasswordConfig
}

// Service owns registration, login, and the refresh-token flow.
type Service struct {
	users    users.Repository
	subs     *subscriptions.Service
	sessions Sessions
	logg     *logger.Logger
	mail     mailer.Mailer
	jwt      config.JWTConfig
	password config.PasswordConfig
}

// NewService validates dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("auth: users repository is required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("auth: subscriptions service is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("auth: session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("auth: logger is required")
	}
	if params.JWT.Secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	return &Service{
		users:    params.Users,
		subs:     params.Subscriptions,
		sessions: params.Sessions,
		logg:     params.Logger,
		mail:     params.Mailer,
		jwt:      params.JWT,
		password: params.Password,
	}, nil
}

// Register creates an account with a trial subscription and signs the user
// in. Duplicate emails surface as a conflict.
func (s *Service) Register(ctx context.Context, email, password string, now time.Time) (*models.User, *TokenPair, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, nil, apperrors.New(apperrors.CodeValidation, "email is required")
	}
	if len(password) < minPasswordLength {
		return nil, nil, apperrors.New(apperrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(password, s.password)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         enums.UserRoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, nil, apperrors.New(apperrors.CodeConflict, "an account with this email already exists")
		}
		return nil, nil, fmt.Errorf("creating user: %w", err)
	}

	if _, err := s.subs.EnsureTrial(ctx, user.ID, now); err != nil {
		return nil, nil, fmt.Errorf("creating trial: %w", err)
	}

	pair, err := s.issueTokens(ctx, user, now)
	if err != nil {
		return nil, nil, err
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "account registered")
	s.sendWelcome(ctx, user.Email)
	return user, pair, nil
}

// sendWelcome is best effort; registration never fails on mail problems.
func (s *Service) sendWelcome(ctx context.Context, email string) {
	if s.mail == nil {
		return
	}
	body := "Welcome to PostPilot. Your free trial is active; connect your Google Business Profile to start scheduling posts."
	if err := s.mail.Send(ctx, email, "Welcome to PostPilot", body); err != nil {
		s.logg.Warn(ctx, "welcome email failed")
	}
}

// Login verifies credentials and issues a token pair. Unknown email and bad
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string, now time.Time) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil, apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, nil, err
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, nil, apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")
	}

	pair, err := s.issueTokens(ctx, user, now)
	if err != nil {
		return nil, nil, err
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "login succeeded")
	return user, pair, nil
}

// Refresh rotates the session tied to the presented (possibly expired)
// access token and mints a new pair.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string, now time.Time) (*TokenPair, error) {
	claims, err := pkgauth.ParseExpiredAccessToken(s.jwt, accessToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("rotating session: %w", err)
	}

	signed, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: claims.UserID,
		Role:   claims.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}
	return &TokenPair{AccessToken: signed, RefreshToken: newRefresh}, nil
}

// Logout revokes the session so the refresh token stops working. The JWT
// itself stays valid until expiry; middleware checks the session.
func (s *Service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

func (s *Service) issueTokens(ctx context.Context, user *models.User, now time.Time) (*TokenPair, error) {
	accessID := session.NewAccessID()
	signed, err := pkgauth.MintAccessToken(s.jwt, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, fmt.Errorf("minting access token: %w", err)
	}

	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	return &TokenPair{AccessToken: signed, RefreshToken: refresh}, nil
}
