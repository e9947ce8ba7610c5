package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/pkg/export"
	"github.com/noah-isme/sma-ledger-api/pkg/storage"
)

// FileStorage keeps rendered exports. Local disk and S3 both satisfy it.
type FileStorage interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

type ledgerSource interface {
	Ledger(ctx context.Context, asOf time.Time, className string) ([]LedgerRow, error)
}

type standingsSource interface {
	Standings(ctx context.Context) ([]StandingEntry, bool, error)
}

type payrollSource interface {
	Roster(ctx context.Context) (*PayrollRoster, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	Key       string
	Token     string
	URL       string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService builds ledger datasets and persists rendered files.
type ExportService struct {
	fees      ledgerSource
	standings standingsSource
	payroll   payrollSource
	renderers export.Registry
	storage   FileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// ExportSources groups the read models an export can draw from.
type ExportSources struct {
	Fees      ledgerSource
	Standings standingsSource
	Payroll   payrollSource
}

// NewExportService constructs an ExportService. A nil registry uses every
// built-in format.
func NewExportService(sources ExportSources, renderers export.Registry, store FileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers == nil {
		renderers = export.DefaultRegistry()
	}
	return &ExportService{
		fees:      sources.Fees,
		standings: sources.Standings,
		payroll:   sources.Payroll,
		renderers: renderers,
		storage:   store,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate builds the dataset for job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := s.renderers.Lookup(string(job.Format))
	if err != nil {
		return nil, err
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Format, err)
	}

	key, err := s.storage.Save(ctx, s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}

	token, expiresAt, err := s.signer.Generate(job.ID, key)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("export generated", zap.String("job_id", job.ID), zap.String("key", key), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		Key:       key,
		Token:     token,
		URL:       fmt.Sprintf("%s/export/%s", prefix, token),
		Format:    job.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (*storage.DownloadClaims, error) {
	return s.signer.Parse(token, allowExpired)
}

// ContentType returns the MIME type for a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	renderer, err := s.renderers.Lookup(string(format))
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

// Open returns a reader for the stored file.
func (s *ExportService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, key)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(ctx context.Context, key string) error {
	return s.storage.Delete(ctx, key)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ctx, ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.ClassName)
	return fmt.Sprintf("%s/%s_%s_%s_%s.%s", job.Type, job.Type, scope, shortID(job.ID), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ExportTypeFeeLedger:
		return s.buildFeeLedgerDataset(ctx, job.Params)
	case models.ExportTypeStandings:
		return s.buildStandingsDataset(ctx, job.Params)
	case models.ExportTypePayroll:
		return s.buildPayrollDataset(ctx)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildFeeLedgerDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	asOf := s.now()
	if params.AsOf != "" {
		parsed, err := time.Parse(admissionDateLayout, params.AsOf)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("parse as_of: %w", err)
		}
		asOf = parsed
	}
	rows, err := s.fees.Ledger(ctx, asOf, params.ClassName)
	if err != nil {
		return export.Dataset{}, err
	}
	data := export.Dataset{
		Title:   fmt.Sprintf("Fee Ledger as of %s", asOf.Format("02 Jan 2006")),
		Headers: []string{"Student ID", "Name", "Class", "Monthly Fee", "Total Paid", "Total Expected", "Total Due", "Months Paid", "Next Month"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		paid := 0
		for _, m := range row.Months {
			if m.Paid {
				paid++
			}
		}
		data.Rows = append(data.Rows, map[string]string{
			"Student ID":     row.StudentID,
			"Name":           row.Name,
			"Class":          row.ClassName,
			"Monthly Fee":    formatAmount(row.MonthlyFees),
			"Total Paid":     formatAmount(row.Due.TotalPaid),
			"Total Expected": formatAmount(row.Due.TotalExpected),
			"Total Due":      formatAmount(row.Due.TotalDue),
			"Months Paid":    strconv.Itoa(paid),
			"Next Month":     row.NextUnpaidMonth,
		})
	}
	return data, nil
}

func (s *ExportService) buildStandingsDataset(ctx context.Context, params models.ExportParams) (export.Dataset, error) {
	entries, _, err := s.standings.Standings(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	data := export.Dataset{
		Title:   "Class Standings",
		Headers: []string{"Rank", "Student ID", "Name", "Class", "Percentage", "Verdict"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		if params.ClassName != "" && !strings.EqualFold(entry.ClassName, params.ClassName) {
			continue
		}
		data.Rows = append(data.Rows, map[string]string{
			"Rank":       strconv.Itoa(entry.Rank),
			"Student ID": entry.StudentID,
			"Name":       entry.Name,
			"Class":      entry.ClassName,
			"Percentage": strconv.FormatFloat(entry.Percentage, 'f', 1, 64),
			"Verdict":    entry.Verdict,
		})
	}
	return data, nil
}

func (s *ExportService) buildPayrollDataset(ctx context.Context) (export.Dataset, error) {
	roster, err := s.payroll.Roster(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	data := export.Dataset{
		Title:   "Payroll",
		Headers: []string{"Teacher ID", "Name", "Subject", "Salary", "Months Paid", "Paid To Date"},
		Rows:    make([]map[string]string, 0, len(roster.Rows)),
	}
	for _, row := range roster.Rows {
		paid := 0
		for _, m := range row.Months {
			if m.Paid {
				paid++
			}
		}
		data.Rows = append(data.Rows, map[string]string{
			"Teacher ID":   row.TeacherID,
			"Name":         row.Name,
			"Subject":      row.Subject,
			"Salary":       formatAmount(row.Salary),
			"Months Paid":  strconv.Itoa(paid),
			"Paid To Date": formatAmount(row.PaidToDate),
		})
	}
	return data, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
