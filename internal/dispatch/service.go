package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/postpilotapp/postpilot-backend/internal/gbp"
	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/metrics"
)

const (
	// cycleLockTTL keeps a second dispatcher replica from running the same
	// cycle. Slightly above the poll interval so a stuck cycle self-heals.
	cycleLockTTL = 90 * time.Second
	// ReloadFlag is raised over the debug endpoint to force an immediate
	// cycle on the next tick.
	ReloadFlag = "dispatch_reload"
	// tokenGrace is how long an expired credential without a refresh token
	// survives before the daily cleanup removes it.
	tokenGrace = 7 * 24 * time.Hour
)

// TokenProvider yields an authenticated Google client for a user.
type TokenProvider interface {
	HTTPClientFor(ctx context.Context, userID uuid.UUID) (*http.Client, error)
	CleanupStale(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

// Poster publishes one local post.
type Poster interface {
	CreatePost(ctx context.Context, httpClient *http.Client, locationID string, post gbp.LocalPost) (*gbp.CreatedPost, error)
}

// AccessChecker derives a user's entitlement.
type AccessChecker interface {
	AccessFor(ctx context.Context, userID uuid.UUID, now time.Time) (subscriptions.Access, *models.Subscription, error)
}

// Locker coordinates cycles across replicas and carries the reload flag.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	FlagKey(name string) string
	ConsumeFlag(ctx context.Context, name string) (bool, error)
}

// ServiceParams wires the dispatcher.
type ServiceParams struct {
	Settings     settings.Repository
	Runs         runs.Repository
	Tokens       TokenProvider
	Poster       Poster
	Access       AccessChecker
	Locker       Locker
	Evaluator    *schedule.Evaluator
	Guard        *Guard
	Metrics      *metrics.DispatcherMetrics
	Logger       *logger.Logger
	PollInterval time.Duration
	Now          func() time.Time
}

// Service is the scheduled posting worker. One cycle per tick: list enabled
// settings, evaluate, gate, post.
type Service struct {
	settings     settings.Repository
	runs         runs.Repository
	tokens       TokenProvider
	poster       Poster
	access       AccessChecker
	locker       Locker
	evaluator    *schedule.Evaluator
	guard        *Guard
	metrics      *metrics.DispatcherMetrics
	logg         *logger.Logger
	pollInterval time.Duration
	now          func() time.Time

	lastCleanupDay string
}

// NewService validates dependencies and builds the dispatcher.
func NewService(params ServiceParams) (*Service, error) {
	if params.Settings == nil {
		return nil, fmt.Errorf("dispatch: settings repository is required")
	}
	if params.Runs == nil {
		return nil, fmt.Errorf("dispatch: runs repository is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("dispatch: token provider is required")
	}
	if params.Poster == nil {
		return nil, fmt.Errorf("dispatch: poster is required")
	}
	if params.Access == nil {
		return nil, fmt.Errorf("dispatch: access checker is required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("dispatch: locker is required")
	}
	if params.Evaluator == nil {
		return nil, fmt.Errorf("dispatch: evaluator is required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("dispatch: guard is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("dispatch: logger is required")
	}
	if params.PollInterval <= 0 {
		params.PollInterval = time.Minute
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		settings:     params.Settings,
		runs:         params.Runs,
		tokens:       params.Tokens,
		poster:       params.Poster,
		access:       params.Access,
		locker:       params.Locker,
		evaluator:    params.Evaluator,
		guard:        params.Guard,
		metrics:      params.Metrics,
		logg:         params.Logger,
		pollInterval: params.PollInterval,
		now:          params.Now,
	}, nil
}

// Run ticks until the context is cancelled. The first cycle fires
// immediately so a fresh deploy does not wait out a full interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	lockKey := s.locker.FlagKey("dispatch_cycle_lock")
	acquired, err := s.locker.SetNX(ctx, lockKey, 1, cycleLockTTL)
	if err != nil {
		s.logg.Error(ctx, "acquiring cycle lock", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.locker.Del(ctx, lockKey); err != nil {
			s.logg.Error(ctx, "releasing cycle lock", err)
		}
	}()

	if reloaded, err := s.locker.ConsumeFlag(ctx, ReloadFlag); err != nil {
		s.logg.Error(ctx, "consuming reload flag", err)
	} else if reloaded {
		s.logg.Info(ctx, "reload flag consumed, settings re-read this cycle")
	}

	if err := s.Cycle(ctx); err != nil {
		s.logg.Error(ctx, "dispatch cycle finished with errors", err)
	}
}

// Cycle runs one evaluation pass. Per-location failures are collected, not
// fatal: one broken location never blocks the rest.
func (s *Service) Cycle(ctx context.Context) error {
	started := s.now()
	defer func() {
		s.metrics.ObserveCycle(s.now().Sub(started))
	}()

	s.guard.Prune(started)
	s.maybeCleanupTokens(ctx, started)

	enabled, err := s.settings.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("listing enabled settings: %w", err)
	}

	var due []models.AutomationSetting
	for _, setting := range enabled {
		if decision := s.evaluator.Evaluate(setting, started); decision.Due {
			due = append(due, setting)
		}
	}
	s.metrics.SetDue(len(due))
	if len(due) == 0 {
		return nil
	}

	var errs error
	for _, setting := range due {
		if err := s.dispatchOne(ctx, setting); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("location %s: %w", setting.LocationID, err))
		}
	}
	return errs
}

func (s *Service) dispatchOne(ctx context.Context, setting models.AutomationSetting) error {
	ctx = s.logg.WithLocationID(ctx, setting.LocationID)
	ctx = s.logg.WithUserID(ctx, setting.UserID.String())
	now := s.now()

	access, _, err := s.access.AccessFor(ctx, setting.UserID, now)
	if err != nil {
		return fmt.Errorf("checking subscription: %w", err)
	}
	if !access.CanUsePlatform {
		s.logg.Info(ctx, "skipping location, subscription inactive")
		return nil
	}

	if !s.guard.TryAcquire(setting.LocationID, now) {
		s.logg.Info(ctx, "skipping location, recently dispatched")
		return nil
	}

	httpClient, err := s.tokens.HTTPClientFor(ctx, setting.UserID)
	if err != nil {
		s.guard.Release(setting.LocationID)
		s.recordFailure(ctx, setting, "auth_reconnect_required", now)
		return fmt.Errorf("google credential: %w", err)
	}

	post := BuildPost(setting, now)
	created, err := s.poster.CreatePost(ctx, httpClient, setting.LocationID, post)
	if err != nil {
		s.guard.Release(setting.LocationID)
		kind := gbp.Classify(err)
		s.recordFailure(ctx, setting, string(kind), now)
		return fmt.Errorf("creating post: %w", err)
	}

	// Order matters: stamp last_run_at only after the API confirmed the
	// post. A crash between the two leaves a duplicate risk for one cycle,
	// covered by the guard, never a silently skipped day.
	if err := s.settings.UpdateLastRun(ctx, setting.ID, now); err != nil {
		return fmt.Errorf("recording last run: %w", err)
	}
	if err := s.runs.Create(ctx, runs.NewSuccess(setting, post.Summary, now)); err != nil {
		s.logg.Error(ctx, "recording post run", err)
	}
	s.metrics.IncSuccess()

	ctx = s.logg.WithField(ctx, "post_name", created.Name)
	s.logg.Info(ctx, "scheduled post published")
	return nil
}

func (s *Service) recordFailure(ctx context.Context, setting models.AutomationSetting, errorCode string, at time.Time) {
	s.metrics.IncFailure(errorCode)
	if err := s.runs.Create(ctx, runs.NewFailure(setting, errorCode, at)); err != nil {
		s.logg.Error(ctx, "recording failed post run", err)
	}
}

// maybeCleanupTokens removes unrecoverable Google credentials once per
// calendar day, piggybacking on the cycle instead of a separate scheduler.
func (s *Service) maybeCleanupTokens(ctx context.Context, now time.Time) {
	day := now.In(s.evaluator.Location()).Format("2006-01-02")
	if day == s.lastCleanupDay {
		return
	}
	s.lastCleanupDay = day

	if _, err := s.tokens.CleanupStale(ctx, now, tokenGrace); err != nil {
		s.logg.Error(ctx, "token cleanup failed", err)
	}
}
