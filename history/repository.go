package history

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yashrajoria/catalog-seeder/models"
)

// Repository persists finished seed runs.
type Repository interface {
	Create(ctx context.Context, rec *models.RunRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RunRecord, error)
	List(ctx context.Context, page, limit int) ([]models.RunRecord, int64, error)
}

// GormRepository implements Repository on Postgres.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the seed_runs table.
func (r *GormRepository) Migrate() error {
	return r.db.AutoMigrate(&models.RunRecord{})
}

func (r *GormRepository) Create(ctx context.Context, rec *models.RunRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.RunRecord, error) {
	var rec models.RunRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	hydrate(&rec)
	return &rec, nil
}

func (r *GormRepository) List(ctx context.Context, page, limit int) ([]models.RunRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var runs []models.RunRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.RunRecord{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	for i := range runs {
		hydrate(&runs[i])
	}
	return runs, total, nil
}

// ObserveRun stores rec as a history row.
func (r *GormRepository) ObserveRun(ctx context.Context, rec *models.RunRecord) error {
	return r.Create(ctx, rec)
}

// hydrate decodes the stored JSON columns back into the report and outcome.
func hydrate(rec *models.RunRecord) {
	if rec.ReportJSON != "" && rec.Report == nil {
		var report models.DryRunReport
		if json.Unmarshal([]byte(rec.ReportJSON), &report) == nil {
			rec.Report = &report
		}
	}
	if rec.OutcomeJSON != "" && rec.Outcome == nil {
		var outcome models.ImportOutcome
		if json.Unmarshal([]byte(rec.OutcomeJSON), &outcome) == nil {
			rec.Outcome = &outcome
		}
	}
}
