package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

const studentColumns = `id, name, photo, class_name, father_name, guardian_name, aadhaar, phone, address,
        admission_fees, monthly_fees, admission_date, payments, exam_results, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns one page of students matching the filter and the total match count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(class_name) LIKE $%d OR LOWER(guardian_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":           "name",
		"class_name":     "class_name",
		"admission_date": "admission_date",
		"created_at":     "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", studentColumns, where, column, order, size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// All returns the full roster in registration order.
func (r *StudentRepository) All(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, "SELECT "+studentColumns+" FROM students ORDER BY created_at ASC, id ASC"); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// Recent returns the latest admissions first.
func (r *StudentRepository) Recent(ctx context.Context, limit int) ([]models.Student, error) {
	if limit <= 0 {
		limit = 5
	}
	var students []models.Student
	query := "SELECT " + studentColumns + " FROM students ORDER BY admission_date DESC, created_at DESC LIMIT $1"
	if err := r.db.SelectContext(ctx, &students, query, limit); err != nil {
		return nil, fmt.Errorf("recent students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID. Missing rows surface as sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, photo, class_name, father_name, guardian_name, aadhaar, phone, address,
        admission_fees, monthly_fees, admission_date, payments, exam_results, created_at, updated_at)
        VALUES (:id, :name, :photo, :class_name, :father_name, :guardian_name, :aadhaar, :phone, :address,
        :admission_fees, :monthly_fees, :admission_date, :payments, :exam_results, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update saves profile fields. Payment and exam history are left untouched.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, photo = :photo, class_name = :class_name, father_name = :father_name,
        guardian_name = :guardian_name, aadhaar = :aadhaar, phone = :phone, address = :address,
        admission_fees = :admission_fees, monthly_fees = :monthly_fees, admission_date = :admission_date, updated_at = :updated_at
        WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectOneRow(res)
}

// Mutate locks the student row, applies fn to a snapshot and stores the
// payment and exam history fn returns. Concurrent mutations of the same
// student are applied one after another.
func (r *StudentRepository) Mutate(ctx context.Context, id string, fn func(models.Student) (models.Student, error)) (result *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin student transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Student
	if err = tx.GetContext(ctx, &current, "SELECT "+studentColumns+" FROM students WHERE id = $1 FOR UPDATE", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.UpdatedAt = time.Now().UTC()

	const updateQuery = `UPDATE students SET payments = $1, exam_results = $2, updated_at = $3 WHERE id = $4`
	if _, err = tx.ExecContext(ctx, updateQuery, next.Payments, next.ExamResults, next.UpdatedAt, next.ID); err != nil {
		return nil, fmt.Errorf("update student history: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit student history: %w", err)
	}
	return &next, nil
}

// Count returns the number of enrolled students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}
