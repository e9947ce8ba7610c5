package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

var fiveSubjects = []string{"Mathematics", "Science", "English", "Hindi", "Social Science"}

func withScores(id string, terms int, marks, oral int) models.Student {
	s := models.Student{ID: id}
	for i := 0; i < terms; i++ {
		term := models.TermResult{TermName: DefaultTerms[i]}
		for _, subject := range fiveSubjects {
			term.Scores = append(term.Scores, models.ExamScore{Subject: subject, Marks: marks, OralMarks: oral, MaxMarks: MaxMarks})
		}
		s.ExamResults = append(s.ExamResults, term)
	}
	return s
}

func TestAggregatePercentageEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, AggregatePercentage(models.Student{}))
	assert.Equal(t, 0.0, AggregatePercentage(models.Student{ExamResults: models.ExamResults{{TermName: "Term 1"}}}))
}

func TestAggregatePercentageTwoTerms(t *testing.T) {
	assert.Equal(t, 50.0, AggregatePercentage(withScores("STU001", 2, 40, 10)))
}

func TestAggregatePercentageKeepsPrecision(t *testing.T) {
	s := models.Student{ExamResults: models.ExamResults{{Scores: []models.ExamScore{
		{Marks: 33, OralMarks: 0}, {Marks: 34, OralMarks: 0}, {Marks: 33, OralMarks: 1},
	}}}}
	p := AggregatePercentage(s)
	assert.InDelta(t, 33.6666, p, 0.001)
	assert.Equal(t, 33.7, Round1(p))
}

func TestRankRosterTiesGetDistinctRanks(t *testing.T) {
	roster := []models.Student{
		withScores("A", 1, 60, 10),
		withScores("B", 1, 60, 10),
		withScores("C", 1, 40, 10),
	}
	ranks := RankRoster(roster)
	require.Len(t, ranks, 3)
	assert.Equal(t, 1, ranks["A"].Rank)
	assert.Equal(t, 2, ranks["B"].Rank)
	assert.Equal(t, 3, ranks["C"].Rank)
	assert.Equal(t, 70.0, ranks["A"].Percentage)
}

func TestRankRosterIsPermutation(t *testing.T) {
	roster := []models.Student{
		withScores("S1", 1, 10, 0),
		withScores("S2", 3, 90, 5),
		withScores("S3", 1, 10, 0),
		{ID: "S4"},
		withScores("S5", 2, 10, 0),
		withScores("S6", 1, 95, 5),
	}
	ranks := RankRoster(roster)
	seen := map[int]bool{}
	for _, st := range ranks {
		assert.False(t, seen[st.Rank], "rank %d repeated", st.Rank)
		seen[st.Rank] = true
	}
	for r := 1; r <= len(roster); r++ {
		assert.True(t, seen[r], "rank %d missing", r)
	}
	assert.Equal(t, 1, ranks["S6"].Rank)
	assert.Equal(t, 6, ranks["S4"].Rank)
	assert.Less(t, ranks["S1"].Rank, ranks["S3"].Rank)
	assert.Empty(t, RankRoster(nil))
}

func TestSubjectTotalAndTermTotals(t *testing.T) {
	s := withScores("STU001", 2, 40, 10)
	s.ExamResults[1].Scores = s.ExamResults[1].Scores[1:]

	assert.Equal(t, 50, SubjectTotal(s, "Mathematics"))
	assert.Equal(t, 100, SubjectTotal(s, "Science"))
	assert.Equal(t, 0, SubjectTotal(s, "Sanskrit"))
	assert.Equal(t, fiveSubjects, Subjects(s))
	assert.Nil(t, Subjects(models.Student{}))

	totals := TermTotals(s)
	require.Len(t, totals, 2)
	assert.Equal(t, TermTotal{TermName: "Term 1", Theory: 200, Oral: 50}, totals[0])
	assert.Equal(t, TermTotal{TermName: "Term 2", Theory: 160, Oral: 40}, totals[1])
}

func TestNewTermResults(t *testing.T) {
	results := NewTermResults([]string{" Mathematics", "", "Science "})
	require.Len(t, results, 3)
	assert.Equal(t, "Final Term", results[2].TermName)
	for _, term := range results {
		require.Len(t, term.Scores, 2)
		assert.Equal(t, models.ExamScore{Subject: "Mathematics", MaxMarks: 100}, term.Scores[0])
		assert.Equal(t, "Science", term.Scores[1].Subject)
	}
	results[0].Scores[0].Marks = 90
	assert.Equal(t, 0, results[1].Scores[0].Marks)
}

func TestUpdateScore(t *testing.T) {
	orig := withScores("STU001", 2, 40, 10)

	next := UpdateScore(orig, "Term 2", 1, FieldMarks, "88")
	assert.Equal(t, 88, next.ExamResults[1].Scores[1].Marks)
	assert.Equal(t, 40, orig.ExamResults[1].Scores[1].Marks)

	next = UpdateScore(orig, "Term 1", 0, FieldOralMarks, "abc")
	assert.Equal(t, 0, next.ExamResults[0].Scores[0].OralMarks)
	assert.Equal(t, 10, orig.ExamResults[0].Scores[0].OralMarks)

	next = UpdateScore(orig, "Term 1", 4, FieldMarks, "500")
	assert.Equal(t, 500, next.ExamResults[0].Scores[4].Marks)

	assert.Equal(t, orig, UpdateScore(orig, "Term 7", 0, FieldMarks, "10"))
	assert.Equal(t, orig, UpdateScore(orig, "Term 1", 9, FieldMarks, "10"))
	assert.Equal(t, orig, UpdateScore(orig, "Term 1", -1, FieldMarks, "10"))
	assert.Equal(t, orig, UpdateScore(orig, "Term 1", 0, "grade", "10"))
}

func TestUpdateScoreDoesNotAlias(t *testing.T) {
	orig := withScores("STU001", 1, 40, 10)
	next := UpdateScore(orig, "Term 1", 0, FieldMarks, "70")
	next.ExamResults[0].Scores[2].Marks = 1
	assert.Equal(t, 40, orig.ExamResults[0].Scores[2].Marks)
}

func TestCoerce(t *testing.T) {
	tests := map[string]int{
		"42":          42,
		"  7":         7,
		"+15":         15,
		"12abc":       12,
		"3.9":         3,
		"":            0,
		"abc":         0,
		"-5":          0,
		"-":           0,
		"99999999999": math.MaxInt32,
		"3000000000":  math.MaxInt32,
		"-3000000000": 0,
	}
	for raw, want := range tests {
		assert.Equal(t, want, Coerce(raw), "raw %q", raw)
	}
}
