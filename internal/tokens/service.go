package tokens

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// businessManageScope grants post creation on Business Profile locations.
const businessManageScope = "https://www.googleapis.com/auth/business.manage"

// ServiceParams wires the token service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
	Google config.GoogleConfig
}

// Service owns the Google OAuth flow and stored credential lifecycle.
type Service struct {
	repo  Repository
	logg  *logger.Logger
	oauth *oauth2.Config
}

// NewService validates dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tokens: repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("tokens: logger is required")
	}
	if params.Google.OAuthClientID == "" || params.Google.OAuthClientSecret == "" {
		return nil, fmt.Errorf("tokens: google oauth credentials are required")
	}

	return &Service{
		repo: params.Repo,
		logg: params.Logger,
		oauth: &oauth2.Config{
			ClientID:     params.Google.OAuthClientID,
			ClientSecret: params.Google.OAuthClientSecret,
			RedirectURL:  params.Google.OAuthRedirectURL,
			Scopes:       []string{businessManageScope},
			Endpoint:     google.Endpoint,
		},
	}, nil
}

// AuthURL builds the consent screen URL. Offline access forces a refresh
// token; without one the connection dies when the access token expires.
func (s *Service) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades the callback code for tokens and stores them.
func (s *Service) Exchange(ctx context.Context, userID uuid.UUID, code string) error {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "google code exchange failed")
	}
	if token.RefreshToken == "" {
		return apperrors.New(apperrors.CodeReconnect, "google did not return a refresh token")
	}

	stored := &models.OAuthToken{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := s.repo.Upsert(ctx, stored); err != nil {
		return fmt.Errorf("storing oauth token: %w", err)
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(ctx, "google account connected")
	return nil
}

// Connected reports whether the user has a stored credential.
func (s *Service) Connected(ctx context.Context, userID uuid.UUID) (bool, *models.OAuthToken, error) {
	token, err := s.repo.Get(ctx, userID)
	if err == ErrNotFound {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, token, nil
}

// HTTPClientFor returns an authenticated client for the user's Google
// calls. Refreshed tokens are persisted so the next caller skips the
// refresh round trip.
func (s *Service) HTTPClientFor(ctx context.Context, userID uuid.UUID) (*http.Client, error) {
	stored, err := s.repo.Get(ctx, userID)
	if err == ErrNotFound {
		return nil, apperrors.New(apperrors.CodeReconnect, "google account not connected")
	}
	if err != nil {
		return nil, err
	}
	if stored.RefreshToken == "" {
		return nil, apperrors.New(apperrors.CodeReconnect, "stored credential has no refresh token")
	}

	current := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.ExpiresAt,
	}
	source := &persistingTokenSource{
		ctx:      ctx,
		repo:     s.repo,
		userID:   userID,
		last:     current,
		delegate: s.oauth.TokenSource(ctx, current),
	}
	return oauth2.NewClient(ctx, source), nil
}

// Disconnect deletes the stored credential. Scheduled posts for the user
// start failing with a reconnect error until they connect again.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	err := s.repo.Delete(ctx, userID)
	if err == ErrNotFound {
		return apperrors.New(apperrors.CodeNotFound, "google account not connected")
	}
	if err != nil {
		return err
	}
	ctx = s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(ctx, "google account disconnected")
	return nil
}

// ListStale returns credentials expired longer than the grace period whose
// refresh token is missing. These can never recover on their own.
func (s *Service) ListStale(ctx context.Context, now time.Time, grace time.Duration) ([]models.OAuthToken, error) {
	expired, err := s.repo.ListExpiredBefore(ctx, now.Add(-grace))
	if err != nil {
		return nil, err
	}
	var stale []models.OAuthToken
	for _, token := range expired {
		if token.RefreshToken == "" {
			stale = append(stale, token)
		}
	}
	return stale, nil
}

// CleanupStale deletes unrecoverable credentials older than the grace
// period. Returns the number removed; dry-run callers use ListStale.
func (s *Service) CleanupStale(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	stale, err := s.ListStale(ctx, now, grace)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	userIDs := make([]uuid.UUID, 0, len(stale))
	for _, token := range stale {
		userIDs = append(userIDs, token.UserID)
	}
	removed, err := s.repo.DeleteByUserIDs(ctx, userIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting stale tokens: %w", err)
	}
	ctx = s.logg.WithField(ctx, "removed", removed)
	s.logg.Info(ctx, "stale google credentials removed")
	return removed, nil
}

// persistingTokenSource writes refreshed tokens back to storage.
type persistingTokenSource struct {
	ctx      context.Context
	repo     Repository
	userID   uuid.UUID
	last     *oauth2.Token
	delegate oauth2.TokenSource
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.delegate.Token()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeReconnect, err, "google token refresh failed")
	}
	if token.AccessToken != p.last.AccessToken {
		refresh := token.RefreshToken
		if refresh == "" {
			refresh = p.last.RefreshToken
		}
		stored := &models.OAuthToken{
			UserID:       p.userID,
			AccessToken:  token.AccessToken,
			RefreshToken: refresh,
			ExpiresAt:    token.Expiry,
		}
		if err := p.repo.Upsert(p.ctx, stored); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}
		p.last = token
	}
	return token, nil
}
