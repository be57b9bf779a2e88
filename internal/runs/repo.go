package runs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	"github.com/postpilotapp/postpilot-backend/pkg/pagination"
)

// Repository is the persistence surface for post run records. The
// dispatcher appends; reporting reads.
type Repository interface {
	Create(ctx context.Context, run *models.PostRun) error
	ListByLocationID(ctx context.Context, locationID string, limit int) ([]models.PostRun, error)
	ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.PostRun, error)
	CountByStatusSince(ctx context.Context, since time.Time) (map[string]int64, error)
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

func (r *gormRepository) Create(ctx context.Context, run *models.PostRun) error {
	return r.conn.WithContext(ctx).Create(run).Error
}

func (r *gormRepository) ListByLocationID(ctx context.Context, locationID string, limit int) ([]models.PostRun, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var runs []models.PostRun
	err := r.conn.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("posted_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *gormRepository) ListPage(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.PostRun, error) {
	query := r.conn.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var runs []models.PostRun
	err := query.Find(&runs).Error
	return runs, err
}

func (r *gormRepository) CountByStatusSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := r.conn.WithContext(ctx).
		Model(&models.PostRun{}).
		Select("status, COUNT(*) AS total").
		Where("posted_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// NewSuccess builds a success record for a confirmed post.
func NewSuccess(setting models.AutomationSetting, summary string, postedAt time.Time) *models.PostRun {
	return &models.PostRun{
		LocationID: setting.LocationID,
		UserID:     setting.UserID,
		Status:     enums.PostRunStatusSuccess,
		Summary:    summary,
		PostedAt:   postedAt,
	}
}

// NewFailure builds a failure record carrying the classified error code.
func NewFailure(setting models.AutomationSetting, errorCode string, attemptedAt time.Time) *models.PostRun {
	return &models.PostRun{
		LocationID: setting.LocationID,
		UserID:     setting.UserID,
		Status:     enums.PostRunStatusFailed,
		ErrorCode:  errorCode,
		PostedAt:   attemptedAt,
	}
}
