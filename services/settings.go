package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/catalog-seeder/errors"
	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/markers"
	"github.com/yashrajoria/catalog-seeder/models"
)

// SettingsUpdate changes operator settings. Nil fields are left alone.
type SettingsUpdate struct {
	Enabled             *bool `json:"enabled"`
	Overwrite           *bool `json:"overwrite"`
	RequiredSeedVersion *int  `json:"required_seed_version"`
	BumpSeedVersion     *int  `json:"bump_seed_version"`
}

// SettingsService reads and changes the run markers operators control.
type SettingsService struct {
	markers *markers.Store
	logger  *zap.Logger
}

func NewSettingsService(m *markers.Store, l *zap.Logger) *SettingsService {
	return &SettingsService{markers: m, logger: logger.OrNop(l)}
}

func (s *SettingsService) Markers(ctx context.Context) (models.MarkerState, error) {
	return s.markers.State(ctx)
}

// Apply validates u, writes every set field and returns the resulting state.
func (s *SettingsService) Apply(ctx context.Context, u SettingsUpdate) (models.MarkerState, error) {
	if u.RequiredSeedVersion != nil && u.BumpSeedVersion != nil {
		return models.MarkerState{}, apperrors.Wrapf(apperrors.ErrValidation, nil,
			"required_seed_version and bump_seed_version are mutually exclusive")
	}
	if u.RequiredSeedVersion != nil && *u.RequiredSeedVersion < 1 {
		return models.MarkerState{}, apperrors.Wrapf(apperrors.ErrValidation, nil,
			"required_seed_version must be at least 1, got %d", *u.RequiredSeedVersion)
	}

	if u.Enabled != nil {
		if err := s.markers.SetEnabled(ctx, *u.Enabled); err != nil {
			return models.MarkerState{}, err
		}
	}
	if u.Overwrite != nil {
		if err := s.markers.SetOverwrite(ctx, *u.Overwrite); err != nil {
			return models.MarkerState{}, err
		}
	}
	if u.RequiredSeedVersion != nil {
		if err := s.markers.SetRequiredSeedVersion(ctx, *u.RequiredSeedVersion); err != nil {
			return models.MarkerState{}, err
		}
	}
	if u.BumpSeedVersion != nil {
		next, err := s.markers.BumpRequiredSeedVersion(ctx, *u.BumpSeedVersion)
		if err != nil {
			return models.MarkerState{}, fmt.Errorf("bump seed version: %w", err)
		}
		s.logger.Info("required seed version bumped", zap.Int("required_seed_version", next))
	}

	return s.markers.State(ctx)
}
