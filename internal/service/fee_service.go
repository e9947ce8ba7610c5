package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/divan/num2words"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/ledger"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type feeStudentRepository interface {
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Mutate(ctx context.Context, id string, fn func(models.Student) (models.Student, error)) (*models.Student, error)
}

// LedgerRow is one student's line in the monthly fee ledger.
type LedgerRow struct {
	StudentID       string               `json:"student_id"`
	Name            string               `json:"name"`
	Photo           string               `json:"photo"`
	ClassName       string               `json:"class_name"`
	MonthlyFees     float64              `json:"monthly_fees"`
	AdmissionFees   float64              `json:"admission_fees"`
	Due             ledger.Due           `json:"due"`
	Months          []ledger.MonthStatus `json:"months"`
	NextUnpaidMonth string               `json:"next_unpaid_month"`
}

// StudentLedger is a ledger row plus the payment history behind it.
type StudentLedger struct {
	LedgerRow
	Payments []models.PaymentRecord `json:"payments"`
}

// CollectFeeRequest records a fee payment. Amount defaults to the monthly fee.
type CollectFeeRequest struct {
	Month  string   `json:"month" validate:"required"`
	Amount *float64 `json:"amount" validate:"omitempty,gt=0"`
}

// Receipt is returned for every collected payment.
type Receipt struct {
	TransactionID string               `json:"transaction_id"`
	StudentID     string               `json:"student_id"`
	StudentName   string               `json:"student_name"`
	ClassName     string               `json:"class_name"`
	Payment       models.PaymentRecord `json:"payment"`
	Currency      string               `json:"currency"`
	AmountInWords string               `json:"amount_in_words"`
	DueAfter      ledger.Due           `json:"due_after"`
}

// FeeService collects fees and reports dues.
type FeeService struct {
	repo      feeStudentRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	currency  string
	now       func() time.Time
}

// NewFeeService wires the fee ledger use cases.
func NewFeeService(repo feeStudentRepository, cache *CacheService, metrics *MetricsService, currency string, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		currency:  currency,
		now:       time.Now,
	}
}

// Ledger returns a row per student with dues as of asOf. A zero asOf means
// today. className narrows the roster when set.
func (s *FeeService) Ledger(ctx context.Context, asOf time.Time, className string) ([]LedgerRow, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	students, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	idx := ledger.MonthIndex(asOf)
	rows := make([]LedgerRow, 0, len(students))
	for _, student := range students {
		if className != "" && !strings.EqualFold(student.ClassName, className) {
			continue
		}
		rows = append(rows, ledgerRow(student, idx))
	}
	return rows, nil
}

// StudentLedger returns the ledger row and payment history of one student.
func (s *FeeService) StudentLedger(ctx context.Context, id string, asOf time.Time) (*StudentLedger, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLoadError(err)
	}
	payments := append([]models.PaymentRecord{}, student.Payments...)
	return &StudentLedger{LedgerRow: ledgerRow(*student, ledger.MonthIndex(asOf)), Payments: payments}, nil
}

// Collect appends a PAID record for the month and returns a receipt. The
// student row is locked for the duration so concurrent collections for the
// same student are applied in turn.
func (s *FeeService) Collect(ctx context.Context, id string, req CollectFeeRequest) (*Receipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !ledger.IsMonth(req.Month) {
		return nil, appErrors.Clone(appErrors.ErrInvalidMonth, fmt.Sprintf("unknown month %q", req.Month))
	}

	now := s.now()
	var amount float64
	updated, err := s.repo.Mutate(ctx, id, func(current models.Student) (models.Student, error) {
		amount = current.MonthlyFees
		if req.Amount != nil {
			amount = *req.Amount
		}
		if amount <= 0 {
			return current, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
		}
		return ledger.RecordPayment(current, req.Month, amount, now), nil
	})
	if err != nil {
		return nil, mutationError(err, "failed to record payment")
	}

	payment := updated.Payments[len(updated.Payments)-1]
	receipt := &Receipt{
		TransactionID: newTransactionID(),
		StudentID:     updated.ID,
		StudentName:   updated.Name,
		ClassName:     updated.ClassName,
		Payment:       payment,
		Currency:      s.currency,
		AmountInWords: amountInWords(payment.Amount),
		DueAfter:      ledger.ComputeDue(*updated, ledger.MonthIndex(now)),
	}

	s.metrics.RecordFeeCollected(amount)
	s.logger.Info("fee collected",
		zap.String("student_id", updated.ID),
		zap.String("month", req.Month),
		zap.Float64("amount", amount),
		zap.String("transaction_id", receipt.TransactionID),
	)
	s.cache.InvalidateReadModels(ctx, cachePatternDashboard)
	return receipt, nil
}

func ledgerRow(student models.Student, monthIndex int) LedgerRow {
	return LedgerRow{
		StudentID:       student.ID,
		Name:            student.Name,
		Photo:           student.Photo,
		ClassName:       student.ClassName,
		MonthlyFees:     student.MonthlyFees,
		AdmissionFees:   student.AdmissionFees,
		Due:             ledger.ComputeDue(student, monthIndex),
		Months:          ledger.MonthStatuses(student.Payments),
		NextUnpaidMonth: ledger.FirstUnpaidMonth(student.Payments, monthIndex),
	}
}

// newTransactionID returns TXN- followed by nine upper case characters.
func newTransactionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN-" + strings.ToUpper(raw[:9])
}

// amountInWords spells the whole part and, when present, the paise.
func amountInWords(amount float64) string {
	cents := int64(math.Round(amount * 100))
	whole := int(cents / 100)
	fraction := int(cents % 100)
	words := num2words.Convert(whole)
	if fraction > 0 {
		words = fmt.Sprintf("%s and %s paise", words, num2words.Convert(fraction))
	}
	return words + " only"
}
