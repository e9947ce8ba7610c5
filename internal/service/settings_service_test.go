package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type memSettingsRepo struct {
	cfg *models.SchoolConfig
	err error
}

func (r *memSettingsRepo) GetSchoolConfig(ctx context.Context) (*models.SchoolConfig, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.cfg == nil {
		return nil, sql.ErrNoRows
	}
	cfg := *r.cfg
	return &cfg, nil
}

func (r *memSettingsRepo) UpsertSchoolConfig(ctx context.Context, cfg models.SchoolConfig) error {
	if r.err != nil {
		return r.err
	}
	r.cfg = &cfg
	return nil
}

func TestSettingsServiceGetDefaults(t *testing.T) {
	svc := NewSettingsService(&memSettingsRepo{}, nil, nil, nil)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSchoolConfig(), *cfg)

	svc = NewSettingsService(&memSettingsRepo{err: errors.New("db down")}, nil, nil, nil)
	_, err = svc.Get(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestSettingsServiceUpdate(t *testing.T) {
	repo := &memSettingsRepo{}
	cacheRepo := newMemCacheRepo()
	svc := NewSettingsService(repo, NewCacheService(cacheRepo, nil, 0, zap.NewNop(), true), nil, nil)

	cfg := models.DefaultSchoolConfig()
	cfg.Name = "Riverside Public School"
	cfg.Language = "hi"
	saved, err := svc.Update(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "Riverside Public School", saved.Name)
	assert.Equal(t, "hi", repo.cfg.Language)
	assert.Contains(t, cacheRepo.invalidated, cachePatternDashboard)

	stored, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg, *stored)
}

func TestSettingsServiceUpdateValidation(t *testing.T) {
	svc := NewSettingsService(&memSettingsRepo{}, nil, nil, nil)

	cfg := models.DefaultSchoolConfig()
	cfg.Language = "fr"
	_, err := svc.Update(context.Background(), cfg)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	cfg = models.DefaultSchoolConfig()
	cfg.StartDate = "2025-04-01"
	cfg.EndDate = "2025-03-31"
	_, err = svc.Update(context.Background(), cfg)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	cfg = models.DefaultSchoolConfig()
	cfg.StartDate = "01/04/2024"
	_, err = svc.Update(context.Background(), cfg)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
