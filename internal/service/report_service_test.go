package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
	"github.com/noah-isme/sma-ledger-api/pkg/jobs"
	"github.com/noah-isme/sma-ledger-api/pkg/storage"
)

const testSigningSecret = "exports-secret"

type memExportJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ExportJob
	seq  int
}

func newMemExportJobStore() *memExportJobStore {
	return &memExportJobStore{jobs: map[string]*models.ExportJob{}}
}

func (s *memExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	job.ID = fmt.Sprintf("job-%d", s.seq)
	job.CreatedAt = fixedNow
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *memExportJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (s *memExportJobStore) Update(ctx context.Context, id string, u repository.ExportJobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.Progress != nil {
		job.Progress = *u.Progress
	}
	if u.ResultURL != nil {
		url := *u.ResultURL
		job.ResultURL = &url
	}
	if u.ErrorMessage != nil {
		msg := *u.ErrorMessage
		job.ErrorMessage = &msg
	}
	if u.FinishedAt != nil {
		job.FinishedAt = u.FinishedAt
	}
	return nil
}

func (s *memExportJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *memExportJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) && job.ResultURL != nil && *job.ResultURL != "" {
			out = append(out, *job)
		}
	}
	return out, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return nil, g.err
}

type exportFixture struct {
	store    *memExportJobStore
	queue    *recordingQueue
	exporter *ExportService
	reports  *ReportService
	worker   *ReportWorker
	metrics  *MetricsService
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	students := newMemStudentRepo(
		studentWithScores("STU1", "Asha", 60, 10, 5),
		studentWithScores("STU2", "Bilal", 30, 5, 5),
	)
	fees := NewFeeService(students, nil, nil, "₹", nil, nil)
	fees.now = fixedClock
	exams := NewExamService(students, nil, nil, nil, ExamServiceConfig{}, nil, nil)
	payroll := NewPayrollService(newMemTeacherRepo(models.Teacher{ID: "TCH1", Name: "Meera", Subject: "Science", Salary: 30000}), nil, nil, "₹", nil, nil)

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exporter := NewExportService(ExportSources{Fees: fees, Standings: exams, Payroll: payroll}, nil, local,
		storage.NewSignedURLSigner(testSigningSecret, time.Hour), ExportConfig{APIPrefix: "/api/v1/"}, nil)
	exporter.now = fixedClock

	store := newMemExportJobStore()
	queue := &recordingQueue{}
	metrics := NewMetricsService()
	return &exportFixture{
		store:    store,
		queue:    queue,
		exporter: exporter,
		reports:  NewReportService(store, queue, exporter, nil, nil, ReportServiceConfig{}),
		worker:   NewReportWorker(store, exporter, metrics, nil),
		metrics:  metrics,
	}
}

func TestReportServiceExportLifecycle(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypeFeeLedger, Format: models.ExportFormatCSV, AsOf: "2024-03-01"}, "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, jobs.Job{ID: job.ID, Type: "fee_ledger"}, f.queue.jobs[0])

	require.NoError(t, f.worker.Handle(ctx, f.queue.jobs[0]))

	stored, err := f.reports.GetStatus(ctx, job.ID, "u-1", models.RoleAccountant)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.True(t, strings.HasPrefix(*stored.ResultURL, "/api/v1/export/"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.exportJobs.WithLabelValues("fee_ledger", "FINISHED")))

	download, err := f.reports.ResolveDownload(ctx, extractToken(*stored.ResultURL))
	require.NoError(t, err)
	defer download.Body.Close()
	body, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, "fee_ledger_all_job1_20240315_103000.csv", download.Filename)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student ID,Name,Class,Monthly Fee,Total Paid,Total Expected,Total Due,Months Paid,Next Month", lines[0])
	assert.Equal(t, "STU1,Asha,10-A,2000.00,0.00,11000.00,11000.00,0,January", lines[1])
}

func TestReportServiceStatusIsOwnerOrAdmin(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	job, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypePayroll, Format: models.ExportFormatXLSX}, "u-1")
	require.NoError(t, err)

	_, err = f.reports.GetStatus(ctx, job.ID, "u-2", models.RoleAccountant)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.reports.GetStatus(ctx, job.ID, "u-2", models.RoleAdmin)
	assert.NoError(t, err)

	_, err = f.reports.GetStatus(ctx, "job-404", "u-1", models.RoleAdmin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestReportServiceCreateJobErrors(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	_, err := f.reports.CreateJob(ctx, ExportRequest{Type: "attendance", Format: models.ExportFormatCSV}, "u-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypeStandings, Format: "docx"}, "u-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	f.queue.err = errors.New("queue full")
	_, err = f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypeStandings, Format: models.ExportFormatPDF}, "u-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	stored, err := f.store.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
}

func TestReportServiceResolveDownloadRejectsBadTokens(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	_, err := f.reports.ResolveDownload(ctx, "not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	job, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypeStandings, Format: models.ExportFormatCSV}, "u-1")
	require.NoError(t, err)

	expired, _, err := storage.NewSignedURLSigner(testSigningSecret, time.Nanosecond).Generate(job.ID, "standings/x.csv")
	require.NoError(t, err)
	_, err = f.reports.ResolveDownload(ctx, expired)
	assert.True(t, errors.Is(err, appErrors.ErrLinkExpired))

	valid, _, err := storage.NewSignedURLSigner(testSigningSecret, time.Hour).Generate(job.ID, "standings/x.csv")
	require.NoError(t, err)
	_, err = f.reports.ResolveDownload(ctx, valid)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestReportWorkerRequeuesThenGivesUp(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	job, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypeStandings, Format: models.ExportFormatCSV}, "u-1")
	require.NoError(t, err)

	worker := NewReportWorker(f.store, failingGenerator{err: errors.New("disk full")}, f.metrics, nil)
	queued := jobs.Job{ID: job.ID, Type: string(job.Type)}
	assert.EqualError(t, worker.Handle(ctx, queued), "disk full")

	stored, err := f.store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "disk full", *stored.ErrorMessage)

	worker.GiveUp(queued, errors.New("disk full"))
	stored, err = f.store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.exportJobs.WithLabelValues("standings", "FAILED")))
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	_, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypePayroll, Format: models.ExportFormatCSV}, "u-1")
	require.NoError(t, err)
	f.queue.jobs = nil

	f.reports.RecoverPendingJobs(ctx)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "job-1", f.queue.jobs[0].ID)
}

func TestReportServiceCleanupClearsExpiredResults(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	job, err := f.reports.CreateJob(ctx, ExportRequest{Type: models.ExportTypePayroll, Format: models.ExportFormatCSV}, "u-1")
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(ctx, jobs.Job{ID: job.ID, Type: string(job.Type)}))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.Update(ctx, job.ID, repository.ExportJobUpdate{FinishedAt: &old}))

	f.reports.cleanupExpired(ctx)

	stored, err := f.store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResultURL)
	assert.Empty(t, *stored.ResultURL)
}

func TestExportServiceStandingsDatasetFiltersClass(t *testing.T) {
	f := newExportFixture(t)

	data, err := f.exporter.buildDataset(context.Background(), &models.ExportJob{Type: models.ExportTypeStandings, Params: models.ExportParams{ClassName: "10-a"}})
	require.NoError(t, err)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "1", data.Rows[0]["Rank"])
	assert.Equal(t, "70.0", data.Rows[0]["Percentage"])
	assert.Equal(t, "Promoted", data.Rows[0]["Verdict"])

	data, err = f.exporter.buildDataset(context.Background(), &models.ExportJob{Type: models.ExportTypeStandings, Params: models.ExportParams{ClassName: "9-B"}})
	require.NoError(t, err)
	assert.Empty(t, data.Rows)

	_, err = f.exporter.buildDataset(context.Background(), &models.ExportJob{Type: models.ExportTypeFeeLedger, Params: models.ExportParams{AsOf: "March"}})
	assert.Error(t, err)
}
