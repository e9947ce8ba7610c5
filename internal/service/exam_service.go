package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type examStudentRepository interface {
	All(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Mutate(ctx context.Context, id string, fn func(models.Student) (models.Student, error)) (*models.Student, error)
}

type remarksWriter interface {
	ReportRemarks(ctx context.Context, studentName string, results models.ExamResults) GeneratedText
}

// StandingEntry is one row of the class standings.
type StandingEntry struct {
	Rank       int     `json:"rank"`
	StudentID  string  `json:"student_id"`
	Name       string  `json:"name"`
	ClassName  string  `json:"class_name"`
	Photo      string  `json:"photo"`
	Percentage float64 `json:"percentage"`
	Verdict    string  `json:"verdict"`
}

// SubjectLine is a marksheet row: one subject across every term.
type SubjectLine struct {
	Subject string             `json:"subject"`
	Terms   []models.ExamScore `json:"terms"`
	Total   int                `json:"total"`
}

// Marksheet is the full academic record of one student.
type Marksheet struct {
	StudentID   string              `json:"student_id"`
	Name        string              `json:"name"`
	ClassName   string              `json:"class_name"`
	Terms       []string            `json:"terms"`
	Subjects    []SubjectLine       `json:"subjects"`
	TermTotals  []scoring.TermTotal `json:"term_totals"`
	Percentage  float64             `json:"percentage"`
	Rank        int                 `json:"rank"`
	RosterSize  int                 `json:"roster_size"`
	Verdict     string              `json:"verdict"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// ScoreValue accepts a JSON string or number and keeps its raw text so it
// can be coerced like form input.
type ScoreValue string

func (v *ScoreValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ScoreValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("score value must be a string or number")
	}
	*v = ScoreValue(n.String())
	return nil
}

// UpdateScoreRequest edits one mark cell.
type UpdateScoreRequest struct {
	Term         string     `json:"term" validate:"required"`
	SubjectIndex int        `json:"subject_index" validate:"gte=0"`
	Field        string     `json:"field" validate:"required,oneof=marks oral_marks"`
	Value        ScoreValue `json:"value"`
}

// TermScoreInput is one subject in a bulk term edit.
type TermScoreInput struct {
	Subject   string `json:"subject" validate:"required,max=80"`
	Marks     int    `json:"marks" validate:"gte=0"`
	OralMarks int    `json:"oral_marks" validate:"gte=0"`
}

// ReplaceTermScoresRequest replaces every score of a term.
type ReplaceTermScoresRequest struct {
	Scores []TermScoreInput `json:"scores" validate:"required,dive"`
}

// ExamService ranks students and maintains their marks.
type ExamService struct {
	repo           examStudentRepository
	cache          *CacheService
	rule           *scoring.PromotionRule
	remarks        remarksWriter
	remarksEnabled bool
	standingsTTL   time.Duration
	validator      *validator.Validate
	logger         *zap.Logger
	now            func() time.Time
}

// ExamServiceConfig groups exam tuning options.
type ExamServiceConfig struct {
	StandingsTTL   time.Duration
	RemarksEnabled bool
}

func NewExamService(repo examStudentRepository, cache *CacheService, rule *scoring.PromotionRule, remarks remarksWriter, cfg ExamServiceConfig, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rule == nil {
		rule, _ = scoring.NewPromotionRule(scoring.DefaultPromotionRule)
	}
	if cfg.StandingsTTL <= 0 {
		cfg.StandingsTTL = 5 * time.Minute
	}
	return &ExamService{
		repo:           repo,
		cache:          cache,
		rule:           rule,
		remarks:        remarks,
		remarksEnabled: cfg.RemarksEnabled,
		standingsTTL:   cfg.StandingsTTL,
		validator:      validate,
		logger:         logger,
		now:            time.Now,
	}
}

// Standings ranks the whole roster. The bool reports a cache hit.
func (s *ExamService) Standings(ctx context.Context) ([]StandingEntry, bool, error) {
	return readThrough(ctx, s.cache, cacheKeyStandings, s.standingsTTL, func() ([]StandingEntry, error) {
		students, err := s.repo.All(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
		}
		return s.rank(students)
	})
}

// Marksheet builds the subject grid, totals, rank and verdict for a student.
func (s *ExamService) Marksheet(ctx context.Context, id string) (*Marksheet, error) {
	students, err := s.repo.All(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	var student *models.Student
	for i := range students {
		if students[i].ID == id {
			student = &students[i]
			break
		}
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	percentage := scoring.AggregatePercentage(*student)
	verdict, err := s.rule.Verdict(scoring.Round1(percentage))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate promotion rule")
	}
	standing := scoring.RankRoster(students)[student.ID]

	sheet := &Marksheet{
		StudentID:   student.ID,
		Name:        student.Name,
		ClassName:   student.ClassName,
		TermTotals:  scoring.TermTotals(*student),
		Percentage:  scoring.Round1(percentage),
		Rank:        standing.Rank,
		RosterSize:  len(students),
		Verdict:     verdict,
		GeneratedAt: s.now().UTC(),
	}
	for _, term := range student.ExamResults {
		sheet.Terms = append(sheet.Terms, term.TermName)
	}
	for _, subject := range scoring.Subjects(*student) {
		line := SubjectLine{Subject: subject, Total: scoring.SubjectTotal(*student, subject)}
		for _, term := range student.ExamResults {
			line.Terms = append(line.Terms, scoreFor(term, subject))
		}
		sheet.Subjects = append(sheet.Subjects, line)
	}
	return sheet, nil
}

// UpdateScore replaces one mark. The value is coerced to a non-negative
// integer; marks above the subject maximum are accepted.
func (s *ExamService) UpdateScore(ctx context.Context, id string, req UpdateScoreRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	updated, err := s.repo.Mutate(ctx, id, func(current models.Student) (models.Student, error) {
		term := findTerm(current.ExamResults, req.Term)
		if term == nil {
			return current, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("term %q not found", req.Term))
		}
		if req.SubjectIndex >= len(term.Scores) {
			return current, appErrors.Clone(appErrors.ErrValidation, "subject_index out of range: "+strconv.Itoa(req.SubjectIndex))
		}
		return scoring.UpdateScore(current, req.Term, req.SubjectIndex, req.Field, string(req.Value)), nil
	})
	if err != nil {
		return nil, mutationError(err, "failed to update score")
	}
	s.logger.Debug("score updated", zap.String("student_id", id), zap.String("term", req.Term), zap.String("field", req.Field))
	s.cache.InvalidateReadModels(ctx, cachePatternExams, cachePatternDashboard)
	return updated, nil
}

// ReplaceTermScores overwrites the scores of one term. Subjects must be
// unique within the term.
func (s *ExamService) ReplaceTermScores(ctx context.Context, id, termName string, req ReplaceTermScoresRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term scores payload")
	}
	seen := make(map[string]struct{}, len(req.Scores))
	for _, in := range req.Scores {
		subject := strings.TrimSpace(in.Subject)
		if _, dup := seen[subject]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate subject %q", subject))
		}
		seen[subject] = struct{}{}
	}
	updated, err := s.repo.Mutate(ctx, id, func(current models.Student) (models.Student, error) {
		next := current.Clone()
		term := findTerm(next.ExamResults, termName)
		if term == nil {
			return current, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("term %q not found", termName))
		}
		scores := make([]models.ExamScore, len(req.Scores))
		for i, in := range req.Scores {
			scores[i] = models.ExamScore{Subject: strings.TrimSpace(in.Subject), Marks: in.Marks, OralMarks: in.OralMarks, MaxMarks: scoring.MaxMarks}
		}
		term.Scores = scores
		return next, nil
	})
	if err != nil {
		return nil, mutationError(err, "failed to replace term scores")
	}
	s.cache.InvalidateReadModels(ctx, cachePatternExams, cachePatternDashboard)
	return updated, nil
}

// Remarks drafts a report card remark from the student's scores.
func (s *ExamService) Remarks(ctx context.Context, id string) (*GeneratedText, error) {
	if !s.remarksEnabled || s.remarks == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "exam remarks are disabled")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, studentLoadError(err)
	}
	text := s.remarks.ReportRemarks(ctx, student.Name, student.ExamResults)
	return &text, nil
}

func (s *ExamService) rank(students []models.Student) ([]StandingEntry, error) {
	byID := make(map[string]models.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}
	ordered := scoring.Ordered(students)
	entries := make([]StandingEntry, len(ordered))
	for i, st := range ordered {
		verdict, err := s.rule.Verdict(scoring.Round1(st.Percentage))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate promotion rule")
		}
		student := byID[st.StudentID]
		entries[i] = StandingEntry{
			Rank:       st.Rank,
			StudentID:  st.StudentID,
			Name:       student.Name,
			ClassName:  student.ClassName,
			Photo:      student.Photo,
			Percentage: scoring.Round1(st.Percentage),
			Verdict:    verdict,
		}
	}
	return entries, nil
}

func findTerm(results models.ExamResults, name string) *models.TermResult {
	for i := range results {
		if results[i].TermName == name {
			return &results[i]
		}
	}
	return nil
}

func scoreFor(term models.TermResult, subject string) models.ExamScore {
	for _, sc := range term.Scores {
		if sc.Subject == subject {
			return sc
		}
	}
	return models.ExamScore{Subject: subject, MaxMarks: scoring.MaxMarks}
}

// mutationError maps errors from a locked student update.
func mutationError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
