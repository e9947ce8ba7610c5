package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	"github.com/noah-isme/sma-ledger-api/internal/scoring"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

type stubRemarks struct {
	name    string
	results models.ExamResults
}

func (s *stubRemarks) ReportRemarks(ctx context.Context, name string, results models.ExamResults) GeneratedText {
	s.name = name
	s.results = results
	return GeneratedText{Text: "Well done.", Generated: true}
}

func newExamServiceForTest(repo *memStudentRepo, cache *CacheService, remarks remarksWriter, enabled bool) *ExamService {
	svc := NewExamService(repo, cache, nil, remarks, ExamServiceConfig{RemarksEnabled: enabled}, nil, zap.NewNop())
	svc.now = fixedClock
	return svc
}

func TestExamServiceStandingsRanksTiesByPosition(t *testing.T) {
	repo := newMemStudentRepo(
		studentWithScores("A", "Asha", 60, 10, 5),
		studentWithScores("B", "Bilal", 60, 10, 5),
		studentWithScores("C", "Chen", 30, 5, 5),
	)
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, 0, zap.NewNop(), true)
	svc := newExamServiceForTest(repo, cache, nil, false)

	entries, hit, err := svc.Standings(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{entries[0].StudentID, entries[1].StudentID, entries[2].StudentID})
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, 70.0, entries[0].Percentage)
	assert.Equal(t, scoring.VerdictPromoted, entries[1].Verdict)
	assert.Equal(t, scoring.VerdictNeedsReview, entries[2].Verdict)
	assert.True(t, cacheRepo.has(cacheKeyStandings))

	cached, hit, err := svc.Standings(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entries, cached)
}

func TestExamServiceMarksheet(t *testing.T) {
	student := models.Student{
		ID:   "A",
		Name: "Asha",
		ExamResults: models.ExamResults{
			{TermName: "Term 1", Scores: []models.ExamScore{{Subject: "Math", Marks: 40, OralMarks: 10, MaxMarks: 100}, {Subject: "Art", Marks: 30, OralMarks: 5, MaxMarks: 100}}},
			{TermName: "Term 2", Scores: []models.ExamScore{{Subject: "Math", Marks: 50, OralMarks: 10, MaxMarks: 100}}},
		},
	}
	repo := newMemStudentRepo(studentWithScores("TOP", "Top", 90, 10, 2), student)
	svc := newExamServiceForTest(repo, nil, nil, false)

	sheet, err := svc.Marksheet(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Term 1", "Term 2"}, sheet.Terms)
	require.Len(t, sheet.Subjects, 2)
	assert.Equal(t, "Math", sheet.Subjects[0].Subject)
	assert.Equal(t, 110, sheet.Subjects[0].Total)
	assert.Equal(t, 35, sheet.Subjects[1].Total)
	assert.Equal(t, 0, sheet.Subjects[1].Terms[1].Marks)
	assert.Equal(t, []scoring.TermTotal{{TermName: "Term 1", Theory: 70, Oral: 15}, {TermName: "Term 2", Theory: 50, Oral: 10}}, sheet.TermTotals)
	// 145 of 300.
	assert.Equal(t, 48.3, sheet.Percentage)
	assert.Equal(t, 2, sheet.Rank)
	assert.Equal(t, 2, sheet.RosterSize)
	assert.Equal(t, scoring.VerdictPromoted, sheet.Verdict)

	_, err = svc.Marksheet(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExamServiceUpdateScoreCoercesInput(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("A", "Asha", 10, 0, 2))
	cacheRepo := newMemCacheRepo()
	cache := NewCacheService(cacheRepo, nil, 0, zap.NewNop(), true)
	svc := newExamServiceForTest(repo, cache, nil, false)

	updated, err := svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 1", SubjectIndex: 1, Field: scoring.FieldMarks, Value: "87abc"})
	require.NoError(t, err)
	assert.Equal(t, 87, updated.ExamResults[0].Scores[1].Marks)

	_, err = svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 1", SubjectIndex: 0, Field: scoring.FieldOralMarks, Value: "abc"})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.get("A").ExamResults[0].Scores[0].OralMarks)

	_, err = svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 1", SubjectIndex: 0, Field: scoring.FieldMarks, Value: "150"})
	require.NoError(t, err)
	assert.Equal(t, 150, repo.get("A").ExamResults[0].Scores[0].Marks)

	assert.Contains(t, cacheRepo.invalidated, cachePatternExams)
}

func TestExamServiceUpdateScoreErrors(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("A", "Asha", 10, 0, 2))
	svc := newExamServiceForTest(repo, nil, nil, false)

	_, err := svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 9", Field: scoring.FieldMarks, Value: "1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 1", SubjectIndex: 5, Field: scoring.FieldMarks, Value: "1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateScore(context.Background(), "A", UpdateScoreRequest{Term: "Term 1", Field: "grade", Value: "1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateScore(context.Background(), "B", UpdateScoreRequest{Term: "Term 1", Field: scoring.FieldMarks, Value: "1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	assert.Equal(t, 10, repo.get("A").ExamResults[0].Scores[0].Marks)
}

func TestExamServiceReplaceTermScores(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("A", "Asha", 10, 0, 2))
	svc := newExamServiceForTest(repo, nil, nil, false)

	updated, err := svc.ReplaceTermScores(context.Background(), "A", "Term 1", ReplaceTermScoresRequest{Scores: []TermScoreInput{{Subject: "Math", Marks: 80, OralMarks: 15}}})
	require.NoError(t, err)
	assert.Equal(t, []models.ExamScore{{Subject: "Math", Marks: 80, OralMarks: 15, MaxMarks: 100}}, updated.ExamResults[0].Scores)

	_, err = svc.ReplaceTermScores(context.Background(), "A", "Final Term", ReplaceTermScoresRequest{Scores: []TermScoreInput{{Subject: "Math"}}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.ReplaceTermScores(context.Background(), "A", "Term 1", ReplaceTermScoresRequest{Scores: []TermScoreInput{{Subject: "Math", Marks: -1}}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExamServiceRemarks(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("A", "Asha", 10, 0, 1))

	disabled := newExamServiceForTest(repo, nil, &stubRemarks{}, false)
	_, err := disabled.Remarks(context.Background(), "A")
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))

	writer := &stubRemarks{}
	svc := newExamServiceForTest(repo, nil, writer, true)
	text, err := svc.Remarks(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "Well done.", text.Text)
	assert.Equal(t, "Asha", writer.name)
	assert.Len(t, writer.results, 1)

	_, err = svc.Remarks(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScoreValueUnmarshal(t *testing.T) {
	var req UpdateScoreRequest
	require.NoError(t, json.Unmarshal([]byte(`{"term":"Term 1","field":"marks","value":42}`), &req))
	assert.Equal(t, ScoreValue("42"), req.Value)
	require.NoError(t, json.Unmarshal([]byte(`{"value":"7x"}`), &req))
	assert.Equal(t, ScoreValue("7x"), req.Value)
	assert.Error(t, json.Unmarshal([]byte(`{"value":true}`), &req))
}

func TestExamServiceVerdictUsesDisplayedPercentage(t *testing.T) {
	student := studentWithScores("P", "Priya", 40, 0, 25)
	student.ExamResults[0].Scores[24].Marks = 39
	svc := newExamServiceForTest(newMemStudentRepo(student), nil, nil, false)

	sheet, err := svc.Marksheet(context.Background(), "P")
	require.NoError(t, err)
	assert.Equal(t, 40.0, sheet.Percentage)
	assert.Equal(t, scoring.VerdictPromoted, sheet.Verdict)

	entries, _, err := svc.Standings(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 40.0, entries[0].Percentage)
	assert.Equal(t, scoring.VerdictPromoted, entries[0].Verdict)
}

func TestExamServiceReplaceTermScoresRejectsDuplicateSubjects(t *testing.T) {
	repo := newMemStudentRepo(studentWithScores("A", "Asha", 60, 10, 2))
	svc := newExamServiceForTest(repo, nil, nil, false)

	_, err := svc.ReplaceTermScores(context.Background(), "A", "Term 1", ReplaceTermScoresRequest{Scores: []TermScoreInput{
		{Subject: "Math", Marks: 50},
		{Subject: " Math ", Marks: 50},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	stored := repo.get("A")
	require.Len(t, stored.ExamResults[0].Scores, 2)
	assert.Equal(t, "SA", stored.ExamResults[0].Scores[0].Subject)
	assert.Equal(t, 0, scoring.SubjectTotal(stored, "Math"))
}
