package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/ledger"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type payrollTeacherRepository interface {
	All(ctx context.Context) ([]models.Teacher, error)
	Mutate(ctx context.Context, id string, fn func(models.Teacher) (models.Teacher, error)) (*models.Teacher, error)
}

// PayrollRow is one teacher's salary strip.
type PayrollRow struct {
	TeacherID  string               `json:"teacher_id"`
	Name       string               `json:"name"`
	Photo      string               `json:"photo"`
	Subject    string               `json:"subject"`
	Salary     float64              `json:"salary"`
	Months     []ledger.MonthStatus `json:"months"`
	PaidToDate float64              `json:"paid_to_date"`
}

// PayrollRoster is the payroll view with the disbursed total.
type PayrollRoster struct {
	Rows           []PayrollRow `json:"rows"`
	TotalDisbursed float64      `json:"total_disbursed"`
}

// PaySalaryRequest records a salary disbursement. Amount defaults to salary.
type PaySalaryRequest struct {
	Month  string   `json:"month" validate:"required"`
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
}

// SalarySlip confirms a disbursement.
type SalarySlip struct {
	TeacherID   string                `json:"teacher_id"`
	TeacherName string                `json:"teacher_name"`
	Payment     models.TeacherPayment `json:"payment"`
	Currency    string                `json:"currency"`
}

// PayrollService disburses salaries.
type PayrollService struct {
	repo      payrollTeacherRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	currency  string
	now       func() time.Time
}

func NewPayrollService(repo payrollTeacherRepository, cache *CacheService, metrics *MetricsService, currency string, validate *validator.Validate, logger *zap.Logger) *PayrollService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayrollService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, currency: currency, now: time.Now}
}

// Roster lists every teacher with their paid months.
func (s *PayrollService) Roster(ctx context.Context) (*PayrollRoster, error) {
	teachers, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	roster := &PayrollRoster{Rows: make([]PayrollRow, 0, len(teachers))}
	for _, t := range teachers {
		row := PayrollRow{
			TeacherID: t.ID,
			Name:      t.Name,
			Photo:     t.Photo,
			Subject:   t.Subject,
			Salary:    t.Salary,
			Months:    ledger.SalaryStatuses(t.Payments),
		}
		row.PaidToDate = ledger.TotalDisbursed([]models.Teacher{t})
		roster.Rows = append(roster.Rows, row)
	}
	roster.TotalDisbursed = ledger.TotalDisbursed(teachers)
	return roster, nil
}

// Pay appends a salary payment for the month under a row lock.
func (s *PayrollService) Pay(ctx context.Context, id string, req PaySalaryRequest) (*SalarySlip, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid salary payload")
	}
	if !ledger.IsMonth(req.Month) {
		return nil, appErrors.Clone(appErrors.ErrInvalidMonth, fmt.Sprintf("unknown month %q", req.Month))
	}

	now := s.now()
	var amount float64
	updated, err := s.repo.Mutate(ctx, id, func(current models.Teacher) (models.Teacher, error) {
		amount = current.Salary
		if req.Amount != nil {
			amount = *req.Amount
		}
		if amount <= 0 {
			return current, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
		}
		return ledger.RecordSalary(current, req.Month, amount, now), nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record salary")
	}

	s.metrics.RecordSalaryDisbursed(amount)
	s.logger.Info("salary disbursed", zap.String("teacher_id", updated.ID), zap.String("month", req.Month), zap.Float64("amount", amount))
	s.cache.InvalidateReadModels(ctx, cachePatternDashboard)
	return &SalarySlip{
		TeacherID:   updated.ID,
		TeacherName: updated.Name,
		Payment:     updated.Payments[len(updated.Payments)-1],
		Currency:    s.currency,
	}, nil
}
