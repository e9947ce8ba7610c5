package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

const searchLimitPerKind = 10

type studentSearcher interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type teacherSearcher interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
}

// SearchService is the global lookup across students and teachers.
type SearchService struct {
	students studentSearcher
	teachers teacherSearcher
	logger   *zap.Logger
}

func NewSearchService(students studentSearcher, teachers teacherSearcher, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{students: students, teachers: teachers, logger: logger}
}

// Search matches students by name, class or guardian and teachers by name
// or subject, case-insensitively. Students are listed first. A blank query
// returns no records.
func (s *SearchService) Search(ctx context.Context, query string) ([]models.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Record{}, nil
	}

	students, _, err := s.students.List(ctx, models.StudentFilter{Search: query, PageSize: searchLimitPerKind, SortBy: "name", SortOrder: "ASC"})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search students")
	}
	teachers, _, err := s.teachers.List(ctx, models.TeacherFilter{Search: query, PageSize: searchLimitPerKind})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search teachers")
	}

	records := make([]models.Record, 0, len(students)+len(teachers))
	for _, st := range students {
		records = append(records, models.StudentRecord(st))
	}
	for _, t := range teachers {
		records = append(records, models.TeacherRecord(t))
	}
	s.logger.Debug("search", zap.String("query", query), zap.Int("results", len(records)))
	return records, nil
}
