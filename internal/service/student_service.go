package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

const admissionDateLayout = "2006-01-02"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// RegisterStudentRequest is the admission form.
type RegisterStudentRequest struct {
	Name          string  `json:"name" validate:"required,max=120"`
	ClassName     string  `json:"class_name" validate:"required,max=40"`
	FatherName    string  `json:"father_name" validate:"max=120"`
	GuardianName  string  `json:"guardian_name" validate:"max=120"`
	Aadhaar       string  `json:"aadhaar" validate:"omitempty,numeric,len=12"`
	Phone         string  `json:"phone" validate:"max=20"`
	Address       string  `json:"address" validate:"max=500"`
	Photo         string  `json:"photo" validate:"omitempty,url"`
	AdmissionFees float64 `json:"admission_fees" validate:"gte=0"`
	MonthlyFees   float64 `json:"monthly_fees" validate:"gte=0"`
	AdmissionDate string  `json:"admission_date" validate:"omitempty,datetime=2006-01-02"`
	// Subjects is a comma separated list; empty uses the configured default.
	Subjects string `json:"subjects"`
}

// UpdateStudentRequest edits profile fields. Fee and exam history are
// changed only through fee collection and score updates.
type UpdateStudentRequest struct {
	Name          string  `json:"name" validate:"required,max=120"`
	ClassName     string  `json:"class_name" validate:"required,max=40"`
	FatherName    string  `json:"father_name" validate:"max=120"`
	GuardianName  string  `json:"guardian_name" validate:"max=120"`
	Aadhaar       string  `json:"aadhaar" validate:"omitempty,numeric,len=12"`
	Phone         string  `json:"phone" validate:"max=20"`
	Address       string  `json:"address" validate:"max=500"`
	Photo         string  `json:"photo" validate:"omitempty,url"`
	AdmissionFees float64 `json:"admission_fees" validate:"gte=0"`
	MonthlyFees   float64 `json:"monthly_fees" validate:"gte=0"`
	AdmissionDate string  `json:"admission_date" validate:"required,datetime=2006-01-02"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo            studentRepository
	cache           *CacheService
	validator       *validator.Validate
	logger          *zap.Logger
	defaultSubjects []string
	now             func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, defaultSubjects []string, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:            repo,
		cache:           cache,
		validator:       validate,
		logger:          logger,
		defaultSubjects: defaultSubjects,
		now:             time.Now,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single student with fee and exam history.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLoadError(err)
	}
	return student, nil
}

// Register admits a new student with an empty fee history and a blank
// marksheet for every default term.
func (s *StudentService) Register(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	subjects := s.defaultSubjects
	if strings.TrimSpace(req.Subjects) != "" {
		subjects = strings.Split(req.Subjects, ",")
	}
	admissionDate := req.AdmissionDate
	if admissionDate == "" {
		admissionDate = s.now().Format(admissionDateLayout)
	}
	photo := req.Photo
	if photo == "" {
		photo = placeholderPhoto(req.Name)
	}

	student := &models.Student{
		ID:            newRecordID("STU"),
		Name:          strings.TrimSpace(req.Name),
		Photo:         photo,
		ClassName:     strings.TrimSpace(req.ClassName),
		FatherName:    req.FatherName,
		GuardianName:  req.GuardianName,
		Aadhaar:       req.Aadhaar,
		Phone:         req.Phone,
		Address:       req.Address,
		AdmissionFees: req.AdmissionFees,
		MonthlyFees:   req.MonthlyFees,
		AdmissionDate: admissionDate,
		Payments:      models.Payments{},
		ExamResults:   scoring.NewTermResults(subjects),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID), zap.String("class", student.ClassName))
	s.cache.InvalidateReadModels(ctx, cachePatternExams, cachePatternDashboard)
	return student, nil
}

// UpdateProfile replaces the editable profile fields of a student.
func (s *StudentService) UpdateProfile(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLoadError(err)
	}

	student := current.Clone()
	student.Name = strings.TrimSpace(req.Name)
	student.ClassName = strings.TrimSpace(req.ClassName)
	student.FatherName = req.FatherName
	student.GuardianName = req.GuardianName
	student.Aadhaar = req.Aadhaar
	student.Phone = req.Phone
	student.Address = req.Address
	if req.Photo != "" {
		student.Photo = req.Photo
	}
	student.AdmissionFees = req.AdmissionFees
	student.MonthlyFees = req.MonthlyFees
	student.AdmissionDate = req.AdmissionDate

	if err := s.repo.Update(ctx, &student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.cache.InvalidateReadModels(ctx, cachePatternExams, cachePatternDashboard)
	return &student, nil
}

func studentLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// newRecordID returns prefix followed by eight upper case hex characters.
func newRecordID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}

func placeholderPhoto(name string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/200/200", url.PathEscape(strings.TrimSpace(name)))
}
