package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

var defaultSubjects = []string{"Mathematics", "Science", "English"}

func newStudentServiceForTest(repo *memStudentRepo, cache *CacheService) *StudentService {
	svc := NewStudentService(repo, cache, defaultSubjects, validator.New(), zap.NewNop())
	svc.now = fixedClock
	return svc
}

func TestStudentServiceRegisterDefaults(t *testing.T) {
	repo := newMemStudentRepo()
	svc := newStudentServiceForTest(repo, nil)

	student, err := svc.Register(context.Background(), RegisterStudentRequest{
		Name:          "Asha Verma",
		ClassName:     "10-A",
		GuardianName:  "R. Verma",
		AdmissionFees: 5000,
		MonthlyFees:   2000,
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^STU[0-9A-F]{8}$`), student.ID)
	assert.Equal(t, "2024-03-15", student.AdmissionDate)
	assert.Equal(t, "https://picsum.photos/seed/Asha%20Verma/200/200", student.Photo)
	assert.Empty(t, student.Payments)
	require.Len(t, student.ExamResults, len(scoring.DefaultTerms))
	for i, term := range student.ExamResults {
		assert.Equal(t, scoring.DefaultTerms[i], term.TermName)
		require.Len(t, term.Scores, 3)
		assert.Equal(t, "Mathematics", term.Scores[0].Subject)
		assert.Equal(t, 100, term.Scores[0].MaxMarks)
	}
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceRegisterCustomSubjects(t *testing.T) {
	svc := newStudentServiceForTest(newMemStudentRepo(), nil)

	student, err := svc.Register(context.Background(), RegisterStudentRequest{
		Name:          "Dev",
		ClassName:     "9-B",
		AdmissionDate: "2024-02-01",
		Subjects:      "Art, Music ,,",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", student.AdmissionDate)
	assert.Equal(t, []string{"Art", "Music"}, scoring.Subjects(*student))
}

func TestStudentServiceRegisterValidation(t *testing.T) {
	svc := newStudentServiceForTest(newMemStudentRepo(), nil)

	_, err := svc.Register(context.Background(), RegisterStudentRequest{Name: "", ClassName: "10-A"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Register(context.Background(), RegisterStudentRequest{Name: "A", ClassName: "10-A", MonthlyFees: -1})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Register(context.Background(), RegisterStudentRequest{Name: "A", ClassName: "10-A", AdmissionDate: "15/03/2024"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceRegisterInvalidatesCache(t *testing.T) {
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, 0, zap.NewNop(), true)
	svc := newStudentServiceForTest(newMemStudentRepo(), cache)

	_, err := svc.Register(context.Background(), RegisterStudentRequest{Name: "A", ClassName: "10-A"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cachePatternExams, cachePatternDashboard}, cacheRepo.invalidated)
}

func TestStudentServiceUpdateProfileKeepsHistory(t *testing.T) {
	existing := studentWithScores("STU1", "Old Name", 40, 10, 2)
	existing.Payments = models.Payments{{Month: "January", Amount: 2000, Date: "05/01/2024", Status: models.FeeStatusPaid}}
	repo := newMemStudentRepo(existing)
	svc := newStudentServiceForTest(repo, nil)

	updated, err := svc.UpdateProfile(context.Background(), "STU1", UpdateStudentRequest{
		Name:          "New Name",
		ClassName:     "11-A",
		MonthlyFees:   2500,
		AdmissionDate: "2024-01-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "11-A", updated.ClassName)

	stored := repo.get("STU1")
	assert.Equal(t, 2500.0, stored.MonthlyFees)
	assert.Len(t, stored.Payments, 1)
	assert.Len(t, stored.ExamResults, 1)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := newStudentServiceForTest(newMemStudentRepo(), nil)

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.UpdateProfile(context.Background(), "missing", UpdateStudentRequest{Name: "A", ClassName: "B", AdmissionDate: "2024-01-01"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceList(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("STU1", "Asha", 0, 0, 1), studentWithScores("STU2", "Bilal", 0, 0, 1))
	svc := newStudentServiceForTest(repo, nil)

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{Search: "bil", Page: 0, PageSize: 500})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "STU2", students[0].ID)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 100, TotalCount: 1}, pagination)

	repo.err = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.StudentFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestStudentServiceUpdateProfileRefreshesStandings(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("STU1", "Asha", 40, 10, 2))
	cache := NewCacheService(newMemCacheRepo(), nil, 0, zap.NewNop(), true)
	students := newStudentServiceForTest(repo, cache)
	exams := newExamServiceForTest(repo, cache, nil, false)

	_, hit, err := exams.Standings(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	_, err = students.UpdateProfile(context.Background(), "STU1", UpdateStudentRequest{
		Name:          "Asha Rao",
		ClassName:     "10-A",
		AdmissionDate: "2024-01-10",
	})
	require.NoError(t, err)

	entries, hit, err := exams.Standings(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, entries, 1)
	assert.Equal(t, "Asha Rao", entries[0].Name)
}
