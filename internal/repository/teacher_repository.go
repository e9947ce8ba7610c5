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

const teacherColumns = "id, name, photo, phone, subject, salary, payments, created_at, updated_at"

// TeacherRepository handles persistence for staff and their payroll history.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns a page of teachers with the total match count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(subject) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	sortColumns := map[string]string{
		"name":       "name",
		"subject":    "subject",
		"salary":     "salary",
		"created_at": "created_at",
	}
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "DESC" {
		order = "ASC"
	}
	page, size := normalisePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM teachers %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", teacherColumns, where, column, order, size, (page-1)*size)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// All returns every teacher ordered by name.
func (r *TeacherRepository) All(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, "SELECT "+teacherColumns+" FROM teachers ORDER BY name ASC, id ASC"); err != nil {
		return nil, fmt.Errorf("list all teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID. Missing rows surface as sql.ErrNoRows.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now
	const query = `INSERT INTO teachers (id, name, photo, phone, subject, salary, payments, created_at, updated_at)
        VALUES (:id, :name, :photo, :phone, :subject, :salary, :payments, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update saves profile fields, leaving payroll history untouched.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET name = :name, photo = :photo, phone = :phone, subject = :subject, salary = :salary, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return expectOneRow(res)
}

// Mutate locks the teacher row and stores the payroll history fn returns.
func (r *TeacherRepository) Mutate(ctx context.Context, id string, fn func(models.Teacher) (models.Teacher, error)) (result *models.Teacher, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin teacher transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Teacher
	if err = tx.GetContext(ctx, &current, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1 FOR UPDATE", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock teacher: %w", err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.UpdatedAt = time.Now().UTC()

	if _, err = tx.ExecContext(ctx, `UPDATE teachers SET payments = $1, updated_at = $2 WHERE id = $3`, next.Payments, next.UpdatedAt, next.ID); err != nil {
		return nil, fmt.Errorf("update teacher payroll: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit teacher payroll: %w", err)
	}
	return &next, nil
}

// Count returns the number of teachers on staff.
func (r *TeacherRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers"); err != nil {
		return 0, fmt.Errorf("count teachers: %w", err)
	}
	return total, nil
}
