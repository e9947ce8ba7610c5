package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type settingsRepository interface {
	GetSchoolConfig(ctx context.Context) (*models.SchoolConfig, error)
	UpsertSchoolConfig(ctx context.Context, cfg models.SchoolConfig) error
}

// SettingsService reads and writes the school branding document.
type SettingsService struct {
	repo      settingsRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewSettingsService(repo settingsRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Get returns the stored configuration, or the defaults when none was saved.
func (s *SettingsService) Get(ctx context.Context) (*models.SchoolConfig, error) {
	cfg, err := s.repo.GetSchoolConfig(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := models.DefaultSchoolConfig()
			return &defaults, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return cfg, nil
}

// Update validates and stores the whole document.
func (s *SettingsService) Update(ctx context.Context, cfg models.SchoolConfig) (*models.SchoolConfig, error) {
	if err := s.validator.Struct(cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}
	if cfg.EndDate < cfg.StartDate {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if err := s.repo.UpsertSchoolConfig(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	s.logger.Info("school settings updated", zap.String("session", cfg.Session))
	s.cache.InvalidateReadModels(ctx, cachePatternDashboard)
	return &cfg, nil
}
