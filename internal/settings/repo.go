package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/pagination"
)

// ErrNotFound is returned when no setting row matches the lookup.
var ErrNotFound = errors.New("automation setting not found")

// AggregateCounts is the admin overview rollup.
type AggregateCounts struct {
	Total    int64
	Enabled  int64
	Disabled int64
	RanToday int64
}

// DuplicateGroup is a location_id that appears on more than one row. Should
// be impossible under the unique constraint; the repair op cleans up rows
// that predate it.
type DuplicateGroup struct {
	LocationID string
	Count      int64
}

// Repository is the persistence surface for automation settings.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationSetting, error)
	GetByLocationID(ctx context.Context, locationID string) (*models.AutomationSetting, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.AutomationSetting, error)
	ListEnabled(ctx context.Context) ([]models.AutomationSetting, error)
	ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AutomationSetting, error)
	Create(ctx context.Context, setting *models.AutomationSetting) error
	Update(ctx context.Context, setting *models.AutomationSetting) error
	UpdateLastRun(ctx context.Context, id uuid.UUID, ranAt time.Time) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	ListDuplicateGroups(ctx context.Context) ([]DuplicateGroup, error)
	ListByLocationIDs(ctx context.Context, locationIDs []string) ([]models.AutomationSetting, error)
	Counts(ctx context.Context, startOfToday time.Time) (AggregateCounts, error)
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

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AutomationSetting, error) {
	var setting models.AutomationSetting
	err := r.conn.WithContext(ctx).First(&setting, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *gormRepository) GetByLocationID(ctx context.Context, locationID string) (*models.AutomationSetting, error) {
	var setting models.AutomationSetting
	err := r.conn.WithContext(ctx).
		Where("location_id = ?", locationID).
		First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *gormRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]models.AutomationSetting, error) {
	var settings []models.AutomationSetting
	err := r.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&settings).Error
	return settings, err
}

// ListEnabled returns every enabled row. The dispatcher calls this each
// cycle; the partial index on enabled keeps it cheap.
func (r *gormRepository) ListEnabled(ctx context.Context) ([]models.AutomationSetting, error) {
	var settings []models.AutomationSetting
	err := r.conn.WithContext(ctx).
		Where("enabled = ?", true).
		Order("location_id ASC").
		Find(&settings).Error
	return settings, err
}

func (r *gormRepository) ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.AutomationSetting, error) {
	query := r.conn.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}
	var settings []models.AutomationSetting
	err := query.Find(&settings).Error
	return settings, err
}

func (r *gormRepository) Create(ctx context.Context, setting *models.AutomationSetting) error {
	return r.conn.WithContext(ctx).Create(setting).Error
}

func (r *gormRepository) Update(ctx context.Context, setting *models.AutomationSetting) error {
	return r.conn.WithContext(ctx).
		Model(&models.AutomationSetting{}).
		Where("id = ?", setting.ID).
		Select("enabled", "schedule", "frequency", "business_name", "category", "keywords").
		Updates(setting).Error
}

// UpdateLastRun stamps last_run_at. Only called after the posting API
// confirmed success, never before.
func (r *gormRepository) UpdateLastRun(ctx context.Context, id uuid.UUID, ranAt time.Time) error {
	return r.conn.WithContext(ctx).
		Model(&models.AutomationSetting{}).
		Where("id = ?", id).
		Update("last_run_at", ranAt).Error
}

func (r *gormRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result := r.conn.WithContext(ctx).
		Model(&models.AutomationSetting{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn.WithContext(ctx).
		Delete(&models.AutomationSetting{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.conn.WithContext(ctx).
		Delete(&models.AutomationSetting{}, "id IN ?", ids)
	return result.RowsAffected, result.Error
}

func (r *gormRepository) ListDuplicateGroups(ctx context.Context) ([]DuplicateGroup, error) {
	var groups []DuplicateGroup
	err := r.conn.WithContext(ctx).
		Model(&models.AutomationSetting{}).
		Select("location_id, COUNT(*) AS count").
		Group("location_id").
		Having("COUNT(*) > 1").
		Scan(&groups).Error
	return groups, err
}

func (r *gormRepository) ListByLocationIDs(ctx context.Context, locationIDs []string) ([]models.AutomationSetting, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	var settings []models.AutomationSetting
	err := r.conn.WithContext(ctx).
		Where("location_id IN ?", locationIDs).
		Order("location_id ASC, created_at ASC").
		Find(&settings).Error
	return settings, err
}

func (r *gormRepository) Counts(ctx context.Context, startOfToday time.Time) (AggregateCounts, error) {
	var counts AggregateCounts
	base := r.conn.WithContext(ctx).Model(&models.AutomationSetting{})

	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base.Session(&gorm.Session{}).Where("enabled = ?", true).Count(&counts.Enabled).Error; err != nil {
		return counts, err
	}
	counts.Disabled = counts.Total - counts.Enabled
	if err := base.Session(&gorm.Session{}).Where("last_run_at >= ?", startOfToday).Count(&counts.RanToday).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
