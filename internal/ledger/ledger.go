// Package ledger derives fee dues and payroll status from payment history.
//
// Every function is pure: inputs are never modified and results share no
// memory with them.
package ledger

import (
	"time"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// DateLayout is how payment dates are written on records (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// Months is the fixed January to December fee cycle.
var Months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthIndex returns the zero-based calendar month of t (0 is January).
func MonthIndex(t time.Time) int {
	return int(t.Month()) - 1
}

// IsMonth reports whether name is one of the canonical month names.
func IsMonth(name string) bool {
	for _, m := range Months {
		if m == name {
			return true
		}
	}
	return false
}

// Due summarises what a student has paid against what is owed so far.
type Due struct {
	TotalPaid     float64 `json:"total_paid"`
	TotalExpected float64 `json:"total_expected"`
	TotalDue      float64 `json:"total_due"`
}

// ComputeDue totals payments against admission fees plus one monthly fee
// for every month up to and including asOfMonthIndex. Overpayment is not
// carried as credit.
func ComputeDue(s models.Student, asOfMonthIndex int) Due {
	var paid float64
	for _, p := range s.Payments {
		paid += p.Amount
	}
	expected := s.AdmissionFees + s.MonthlyFees*float64(asOfMonthIndex+1)
	due := expected - paid
	if due < 0 {
		due = 0
	}
	return Due{TotalPaid: paid, TotalExpected: expected, TotalDue: due}
}

// IsMonthPaid is an exact, case-sensitive membership test.
func IsMonthPaid(s models.Student, month string) bool {
	for _, p := range s.Payments {
		if p.Month == month {
			return true
		}
	}
	return false
}

// RecordPayment returns a copy of s with one PAID record appended.
// A month that is already paid is recorded again.
func RecordPayment(s models.Student, month string, amount float64, now time.Time) models.Student {
	out := s.Clone()
	out.Payments = append(out.Payments, models.PaymentRecord{
		Month:  month,
		Amount: amount,
		Date:   now.Format(DateLayout),
		Status: models.FeeStatusPaid,
	})
	return out
}

// MonthStatus is one cell of the twelve month payment strip.
type MonthStatus struct {
	Month string `json:"month"`
	Paid  bool   `json:"paid"`
}

// MonthStatuses reports paid/unpaid for every month in cycle order.
func MonthStatuses(payments []models.PaymentRecord) []MonthStatus {
	paid := make(map[string]bool, len(payments))
	for _, p := range payments {
		paid[p.Month] = true
	}
	out := make([]MonthStatus, len(Months))
	for i, m := range Months {
		out[i] = MonthStatus{Month: m, Paid: paid[m]}
	}
	return out
}

// FirstUnpaidMonth picks the earliest unpaid month, or Months[fallbackIndex]
// when the whole cycle is paid.
func FirstUnpaidMonth(payments []models.PaymentRecord, fallbackIndex int) string {
	for _, st := range MonthStatuses(payments) {
		if !st.Paid {
			return st.Month
		}
	}
	if fallbackIndex < 0 || fallbackIndex >= len(Months) {
		fallbackIndex = 0
	}
	return Months[fallbackIndex]
}

// TotalCollection is admission fees plus every payment across the roster.
func TotalCollection(students []models.Student) float64 {
	var total float64
	for _, s := range students {
		total += s.AdmissionFees
		for _, p := range s.Payments {
			total += p.Amount
		}
	}
	return total
}

// TotalOutstanding sums ComputeDue(...).TotalDue across the roster.
func TotalOutstanding(students []models.Student, asOfMonthIndex int) float64 {
	var total float64
	for _, s := range students {
		total += ComputeDue(s, asOfMonthIndex).TotalDue
	}
	return total
}
