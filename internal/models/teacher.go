package models

import (
	"database/sql/driver"
	"time"
)

// TeacherPayment is one salary disbursement. Date is DD/MM/YYYY.
type TeacherPayment struct {
	Month  string  `json:"month"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// SalaryPayments is the append-only payroll history stored as JSONB.
type SalaryPayments []TeacherPayment

func (p SalaryPayments) Value() (driver.Value, error) {
	if p == nil {
		p = SalaryPayments{}
	}
	return jsonValue(p, "salary payments")
}

func (p *SalaryPayments) Scan(value interface{}) error {
	*p = SalaryPayments{}
	return scanJSON(value, p, "salary payments")
}

// Teacher is a member of staff on the payroll.
type Teacher struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Photo     string         `db:"photo" json:"photo"`
	Phone     string         `db:"phone" json:"phone"`
	Subject   string         `db:"subject" json:"subject"`
	Salary    float64        `db:"salary" json:"salary"`
	Payments  SalaryPayments `db:"payments" json:"payments"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Clone returns a copy whose payment history is not shared with t.
func (t Teacher) Clone() Teacher {
	out := t
	if t.Payments != nil {
		out.Payments = append(SalaryPayments(nil), t.Payments...)
	}
	return out
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Subject   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
