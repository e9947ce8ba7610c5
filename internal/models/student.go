package models

import (
	"database/sql/driver"
	"time"
)

// FeeStatus is the state of a single fee payment.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusOverdue FeeStatus = "OVERDUE"
)

// PaymentRecord is one fee payment. Date is DD/MM/YYYY.
type PaymentRecord struct {
	Month  string    `json:"month"`
	Amount float64   `json:"amount"`
	Date   string    `json:"date"`
	Status FeeStatus `json:"status"`
}

// Payments is the append-only fee history stored as JSONB.
type Payments []PaymentRecord

func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		p = Payments{}
	}
	return jsonValue(p, "payments")
}

func (p *Payments) Scan(value interface{}) error {
	*p = Payments{}
	return scanJSON(value, p, "payments")
}

// ExamScore holds the marks for one subject in one term.
type ExamScore struct {
	Subject   string `json:"subject"`
	Marks     int    `json:"marks"`
	OralMarks int    `json:"oral_marks"`
	MaxMarks  int    `json:"max_marks"`
}

// TermResult groups the scores recorded for a term.
type TermResult struct {
	TermName string      `json:"term_name"`
	Scores   []ExamScore `json:"scores"`
}

// ExamResults is the per-term score sheet stored as JSONB.
type ExamResults []TermResult

func (r ExamResults) Value() (driver.Value, error) {
	if r == nil {
		r = ExamResults{}
	}
	return jsonValue(r, "exam results")
}

func (r *ExamResults) Scan(value interface{}) error {
	*r = ExamResults{}
	return scanJSON(value, r, "exam results")
}

// Student is an enrolled learner together with fee and exam history.
type Student struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Photo         string      `db:"photo" json:"photo"`
	ClassName     string      `db:"class_name" json:"class_name"`
	FatherName    string      `db:"father_name" json:"father_name"`
	GuardianName  string      `db:"guardian_name" json:"guardian_name"`
	Aadhaar       string      `db:"aadhaar" json:"aadhaar"`
	Phone         string      `db:"phone" json:"phone"`
	Address       string      `db:"address" json:"address"`
	AdmissionFees float64     `db:"admission_fees" json:"admission_fees"`
	MonthlyFees   float64     `db:"monthly_fees" json:"monthly_fees"`
	AdmissionDate string      `db:"admission_date" json:"admission_date"`
	Payments      Payments    `db:"payments" json:"payments"`
	ExamResults   ExamResults `db:"exam_results" json:"exam_results"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy; the slices of the copy share nothing with s.
func (s Student) Clone() Student {
	out := s
	if s.Payments != nil {
		out.Payments = append(Payments(nil), s.Payments...)
	}
	if s.ExamResults != nil {
		out.ExamResults = make(ExamResults, len(s.ExamResults))
		for i, term := range s.ExamResults {
			out.ExamResults[i] = TermResult{TermName: term.TermName}
			if term.Scores != nil {
				out.ExamResults[i].Scores = append([]ExamScore(nil), term.Scores...)
			}
		}
	}
	return out
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassName string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
