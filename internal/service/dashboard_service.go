package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/ledger"
	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

const (
	dashboardTopStandings    = 5
	dashboardRecentAdmission = 5
)

type dashboardStudentRepository interface {
	All(ctx context.Context) ([]models.Student, error)
	Recent(ctx context.Context, limit int) ([]models.Student, error)
}

type dashboardTeacherRepository interface {
	All(ctx context.Context) ([]models.Teacher, error)
}

type schoolConfigReader interface {
	Get(ctx context.Context) (*models.SchoolConfig, error)
}

// TopStudent is a leaderboard line on the dashboard.
type TopStudent struct {
	Rank       int     `json:"rank"`
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	ClassName  string  `json:"class_name"`
	Photo      string  `json:"photo"`
	Percentage float64 `json:"percentage"`
}

// RecentAdmission is a newly admitted student.
type RecentAdmission struct {
	StudentID     string `json:"student_id"`
	Name          string `json:"name"`
	ClassName     string `json:"class_name"`
	Photo         string `json:"photo"`
	AdmissionDate string `json:"admission_date"`
}

// ExamAlert is the notice configured in settings.
type ExamAlert struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DashboardSummary is the office overview.
type DashboardSummary struct {
	SchoolName       string            `json:"school_name"`
	Session          string            `json:"session"`
	AsOfMonth        string            `json:"as_of_month"`
	StudentCount     int               `json:"student_count"`
	TeacherCount     int               `json:"teacher_count"`
	TotalCollection  float64           `json:"total_collection"`
	TotalOutstanding float64           `json:"total_outstanding"`
	PayrollDisbursed float64           `json:"payroll_disbursed"`
	TopStudents      []TopStudent      `json:"top_students"`
	RecentAdmissions []RecentAdmission `json:"recent_admissions"`
	ExamAlert        ExamAlert         `json:"exam_alert"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

// DashboardService composes the dashboard from the roster, payroll and settings.
type DashboardService struct {
	students dashboardStudentRepository
	teachers dashboardTeacherRepository
	settings schoolConfigReader
	cache    *CacheService
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewDashboardService(students dashboardStudentRepository, teachers dashboardTeacherRepository, settings schoolConfigReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{students: students, teachers: teachers, settings: settings, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Summary returns the dashboard for the current month and reports whether
// it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, bool, error) {
	now := s.now()
	monthIndex := ledger.MonthIndex(now)
	key := dashboardCacheKey(monthIndex)

	return readThrough(ctx, s.cache, key, s.ttl, func() (*DashboardSummary, error) {
		return s.compose(ctx, now, monthIndex)
	})
}

func (s *DashboardService) compose(ctx context.Context, now time.Time, monthIndex int) (*DashboardSummary, error) {
	students, err := s.students.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	teachers, err := s.teachers.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	recent, err := s.students.Recent(ctx, dashboardRecentAdmission)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent admissions")
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		SchoolName:       cfg.Name,
		Session:          cfg.Session,
		AsOfMonth:        ledger.Months[monthIndex],
		StudentCount:     len(students),
		TeacherCount:     len(teachers),
		TotalCollection:  ledger.TotalCollection(students),
		TotalOutstanding: ledger.TotalOutstanding(students, monthIndex),
		PayrollDisbursed: ledger.TotalDisbursed(teachers),
		TopStudents:      topStudents(students, dashboardTopStandings),
		RecentAdmissions: make([]RecentAdmission, 0, len(recent)),
		ExamAlert:        ExamAlert{Title: cfg.ExamTitle, Content: cfg.ExamContent},
		GeneratedAt:      now.UTC(),
	}
	for _, st := range recent {
		summary.RecentAdmissions = append(summary.RecentAdmissions, RecentAdmission{
			StudentID:     st.ID,
			Name:          st.Name,
			ClassName:     st.ClassName,
			Photo:         st.Photo,
			AdmissionDate: st.AdmissionDate,
		})
	}
	return summary, nil
}

func topStudents(students []models.Student, limit int) []TopStudent {
	byID := make(map[string]models.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}
	ordered := scoring.Ordered(students)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]TopStudent, len(ordered))
	for i, st := range ordered {
		student := byID[st.StudentID]
		out[i] = TopStudent{
			Rank:       st.Rank,
			StudentID:  st.StudentID,
			Name:       student.Name,
			ClassName:  student.ClassName,
			Photo:      student.Photo,
			Percentage: scoring.Round1(st.Percentage),
		}
	}
	return out
}
