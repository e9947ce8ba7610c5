package ledger

import (
	"time"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// IsSalaryPaid reports whether any disbursement names month.
func IsSalaryPaid(t models.Teacher, month string) bool {
	for _, p := range t.Payments {
		if p.Month == month {
			return true
		}
	}
	return false
}

// RecordSalary returns a copy of t with one disbursement appended.
func RecordSalary(t models.Teacher, month string, amount float64, now time.Time) models.Teacher {
	out := t.Clone()
	out.Payments = append(out.Payments, models.TeacherPayment{
		Month:  month,
		Date:   now.Format(DateLayout),
		Amount: amount,
	})
	return out
}

// SalaryStatuses is the payroll counterpart of MonthStatuses.
func SalaryStatuses(payments []models.TeacherPayment) []MonthStatus {
	records := make([]models.PaymentRecord, len(payments))
	for i, p := range payments {
		records[i] = models.PaymentRecord{Month: p.Month}
	}
	return MonthStatuses(records)
}

// TotalDisbursed sums every salary payment made to the given staff.
func TotalDisbursed(teachers []models.Teacher) float64 {
	var total float64
	for _, t := range teachers {
		for _, p := range t.Payments {
			total += p.Amount
		}
	}
	return total
}
