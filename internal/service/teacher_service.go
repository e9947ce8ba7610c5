package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
}

// TeacherRequest is shared by registration and profile updates.
type TeacherRequest struct {
	Name    string  `json:"name" validate:"required,max=120"`
	Subject string  `json:"subject" validate:"required,max=80"`
	Phone   string  `json:"phone" validate:"max=20"`
	Photo   string  `json:"photo" validate:"omitempty,url"`
	Salary  float64 `json:"salary" validate:"gte=0"`
}

// TeacherService manages teacher profiles.
type TeacherService struct {
	repo      teacherRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService creates a new TeacherService instance.
func NewTeacherService(repo teacherRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher by id.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, teacherLoadError(err)
	}
	return teacher, nil
}

// Register adds a teacher with no salary history.
func (s *TeacherService) Register(ctx context.Context, req TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	photo := req.Photo
	if photo == "" {
		photo = placeholderPhoto(req.Name)
	}
	teacher := &models.Teacher{
		ID:       newRecordID("TCH"),
		Name:     strings.TrimSpace(req.Name),
		Subject:  strings.TrimSpace(req.Subject),
		Phone:    req.Phone,
		Photo:    photo,
		Salary:   req.Salary,
		Payments: models.SalaryPayments{},
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.logger.Info("teacher registered", zap.String("teacher_id", teacher.ID))
	s.cache.InvalidateReadModels(ctx, cachePatternDashboard)
	return teacher, nil
}

// UpdateProfile modifies teacher details. Salary history is untouched.
func (s *TeacherService) UpdateProfile(ctx context.Context, id string, req TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, teacherLoadError(err)
	}
	teacher := current.Clone()
	teacher.Name = strings.TrimSpace(req.Name)
	teacher.Subject = strings.TrimSpace(req.Subject)
	teacher.Phone = req.Phone
	teacher.Salary = req.Salary
	if req.Photo != "" {
		teacher.Photo = req.Photo
	}
	if err := s.repo.Update(ctx, &teacher); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return &teacher, nil
}

func teacherLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
}
