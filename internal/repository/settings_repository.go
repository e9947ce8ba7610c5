package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// SettingsRepository stores JSON documents in the school_settings table.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSchoolConfig loads the branding document. A missing row is sql.ErrNoRows.
func (r *SettingsRepository) GetSchoolConfig(ctx context.Context) (*models.SchoolConfig, error) {
	var setting models.Setting
	const query = `SELECT key, value, updated_at FROM school_settings WHERE key = $1`
	if err := r.db.GetContext(ctx, &setting, query, models.SchoolConfigKey); err != nil {
		return nil, err
	}
	return &setting.Value, nil
}

// UpsertSchoolConfig replaces the branding document.
func (r *SettingsRepository) UpsertSchoolConfig(ctx context.Context, cfg models.SchoolConfig) error {
	setting := models.Setting{Key: models.SchoolConfigKey, Value: cfg, UpdatedAt: time.Now().UTC()}
	const query = `INSERT INTO school_settings (key, value, updated_at)
VALUES (:key, :value, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert school config: %w", err)
	}
	return nil
}
