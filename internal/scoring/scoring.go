// Package scoring turns raw exam marks into percentages, ranks and totals.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// MaxMarks is the fixed maximum of each subject score.
const MaxMarks = 100

// Score fields accepted by UpdateScore.
const (
	FieldMarks     = "marks"
	FieldOralMarks = "oral_marks"
)

// DefaultTerms are seeded for every new student.
var DefaultTerms = []string{"Term 1", "Term 2", "Final Term"}

// AggregatePercentage is written plus oral marks over all terms divided by
// the marks available, times 100. No scores yields 0.
func AggregatePercentage(s models.Student) float64 {
	var obtained, available int
	for _, term := range s.ExamResults {
		for _, sc := range term.Scores {
			obtained += sc.Marks + sc.OralMarks
		}
		available += len(term.Scores) * MaxMarks
	}
	if available == 0 {
		return 0
	}
	return float64(obtained) / float64(available) * 100
}

// Round1 rounds p to one decimal place for display.
func Round1(p float64) float64 {
	return math.Round(p*10) / 10
}

// Standing is a student's place in the roster.
type Standing struct {
	StudentID  string  `json:"student_id"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

// RankRoster orders students by full precision percentage, highest first.
// Ties keep input order and still get distinct ranks, so the ranks are
// always exactly 1..len(students).
func RankRoster(students []models.Student) map[string]Standing {
	ordered := Ordered(students)
	out := make(map[string]Standing, len(ordered))
	for _, st := range ordered {
		out[st.StudentID] = st
	}
	return out
}

// Ordered is RankRoster as a slice in rank order.
func Ordered(students []models.Student) []Standing {
	ordered := make([]Standing, len(students))
	for i, s := range students {
		ordered[i] = Standing{StudentID: s.ID, Percentage: AggregatePercentage(s)}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Percentage > ordered[j].Percentage
	})
	for i := range ordered {
		ordered[i].Rank = i + 1
	}
	return ordered
}

// SubjectTotal sums marks and oral marks for subject over every term that
// lists it.
func SubjectTotal(s models.Student, subject string) int {
	total := 0
	for _, term := range s.ExamResults {
		for _, sc := range term.Scores {
			if sc.Subject == subject {
				total += sc.Marks + sc.OralMarks
			}
		}
	}
	return total
}

// Subjects lists the subjects of the first term, the marksheet row order.
func Subjects(s models.Student) []string {
	if len(s.ExamResults) == 0 {
		return nil
	}
	out := make([]string, len(s.ExamResults[0].Scores))
	for i, sc := range s.ExamResults[0].Scores {
		out[i] = sc.Subject
	}
	return out
}

// TermTotal is the marksheet footer for one term.
type TermTotal struct {
	TermName string `json:"term_name"`
	Theory   int    `json:"theory"`
	Oral     int    `json:"oral"`
}

// TermTotals sums theory and oral marks per term, in term order.
func TermTotals(s models.Student) []TermTotal {
	out := make([]TermTotal, len(s.ExamResults))
	for i, term := range s.ExamResults {
		out[i].TermName = term.TermName
		for _, sc := range term.Scores {
			out[i].Theory += sc.Marks
			out[i].Oral += sc.OralMarks
		}
	}
	return out
}

// NewTermResults seeds DefaultTerms with a zero score for every subject.
func NewTermResults(subjects []string) models.ExamResults {
	results := make(models.ExamResults, len(DefaultTerms))
	for i, name := range DefaultTerms {
		scores := make([]models.ExamScore, 0, len(subjects))
		for _, subject := range subjects {
			subject = strings.TrimSpace(subject)
			if subject == "" {
				continue
			}
			scores = append(scores, models.ExamScore{Subject: subject, MaxMarks: MaxMarks})
		}
		results[i] = models.TermResult{TermName: name, Scores: scores}
	}
	return results
}

// UpdateScore returns a copy of s with one mark replaced. raw is read like
// a leading integer; anything unreadable or negative becomes 0. Marks above
// MaxMarks are kept. An unknown term, index or field returns an unchanged
// copy.
func UpdateScore(s models.Student, termName string, subjectIndex int, field, raw string) models.Student {
	out := s.Clone()
	value := Coerce(raw)
	for i := range out.ExamResults {
		term := &out.ExamResults[i]
		if term.TermName != termName {
			continue
		}
		if subjectIndex < 0 || subjectIndex >= len(term.Scores) {
			return out
		}
		switch field {
		case FieldMarks:
			term.Scores[subjectIndex].Marks = value
		case FieldOralMarks:
			term.Scores[subjectIndex].OralMarks = value
		}
		return out
	}
	return out
}

// Coerce parses the optional sign and digits at the start of raw after
// leading whitespace. No digits or a negative result gives 0; values past
// math.MaxInt32 are capped there.
func Coerce(raw string) int {
	s := strings.TrimLeft(raw, " \t\n\r\v\f")
	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}
	n := 0
	digits := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		digits++
		if n > (math.MaxInt32-int(c-'0'))/10 {
			n = math.MaxInt32
			continue
		}
		n = n*10 + int(c-'0')
	}
	if digits == 0 || negative {
		return 0
	}
	return n
}
