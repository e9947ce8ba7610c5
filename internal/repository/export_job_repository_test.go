package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

var exportJobRowColumns = []string{"id", "type", "format", "params", "status", "progress", "result_url", "error_message", "created_by", "created_at", "updated_at", "finished_at"}

func TestExportJobRepositoryCreateAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO export_jobs")).
		WithArgs(sqlmock.AnyArg(), "fee_ledger", "xlsx", []byte(`{"as_of":"2025-03-01"}`), "QUEUED", 0, nil, nil, "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{
		Type:      models.ExportTypeFeeLedger,
		Format:    models.ExportFormatXLSX,
		Params:    models.ExportParams{AsOf: "2025-03-01"},
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows(exportJobRowColumns).
			AddRow(job.ID, "fee_ledger", "xlsx", []byte(`{"as_of":"2025-03-01"}`), "QUEUED", 0, nil, nil, "user-1", now, now, nil))

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", fetched.Params.AsOf)
	assert.Nil(t, fetched.ResultURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryGetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	mock.ExpectQuery("FROM export_jobs").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExportJobRepositoryUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	now := time.Now()
	status := models.ExportStatusFinished
	progress := 100
	url := "/api/v1/export/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, progress = $2, result_url = $3, finished_at = $4, updated_at = $5 WHERE id = $6")).
		WithArgs(status, progress, url, now, sqlmock.AnyArg(), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", ExportJobUpdate{Status: &status, Progress: &progress, ResultURL: &url, FinishedAt: &now}))
	require.NoError(t, repo.Update(context.Background(), "job-1", ExportJobUpdate{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobRepositoryListQueries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExportJobRepository(db)

	cutoff := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(exportJobRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'FINISHED' AND finished_at IS NOT NULL AND finished_at < $1 AND COALESCE(result_url, '') <> ''")).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(exportJobRowColumns))

	_, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	_, err = repo.ListFinishedBefore(context.Background(), cutoff, 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
