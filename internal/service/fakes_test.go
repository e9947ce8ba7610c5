package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-ledger-api/internal/models"
	appErrors "github.com/noah-isme/sma-ledger-api/pkg/errors"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type memStudentRepo struct {
	mu       sync.Mutex
	students map[string]models.Student
	order    []string
	err      error
	mutates  int
}

func newMemStudentRepo(students ...models.Student) *memStudentRepo {
	r := &memStudentRepo{students: map[string]models.Student{}}
	for _, s := range students {
		r.students[s.ID] = s.Clone()
		r.order = append(r.order, s.ID)
	}
	return r
}

func (r *memStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Student
	for _, id := range r.order {
		s := r.students[id]
		if filter.ClassName != "" && s.ClassName != filter.ClassName {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(s.Name), q) &&
				!strings.Contains(strings.ToLower(s.ClassName), q) &&
				!strings.Contains(strings.ToLower(s.GuardianName), q) {
				continue
			}
		}
		out = append(out, s.Clone())
	}
	return out, len(out), nil
}

func (r *memStudentRepo) All(ctx context.Context) ([]models.Student, error) {
	students, _, err := r.List(ctx, models.StudentFilter{})
	return students, err
}

func (r *memStudentRepo) Recent(ctx context.Context, limit int) ([]models.Student, error) {
	students, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].AdmissionDate > students[j].AdmissionDate })
	if len(students) > limit {
		students = students[:limit]
	}
	return students, nil
}

func (r *memStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := s.Clone()
	return &clone, nil
}

func (r *memStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	student.CreatedAt = fixedNow
	student.UpdatedAt = fixedNow
	r.students[student.ID] = student.Clone()
	r.order = append(r.order, student.ID)
	return nil
}

func (r *memStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.students[student.ID]
	if !ok {
		return sql.ErrNoRows
	}
	next := student.Clone()
	next.Payments = current.Payments
	next.ExamResults = current.ExamResults
	r.students[student.ID] = next
	return nil
}

// Mutate holds the lock across fn, like a row lock.
func (r *memStudentRepo) Mutate(ctx context.Context, id string, fn func(models.Student) (models.Student, error)) (*models.Student, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutates++
	current, ok := r.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	stored := current.Clone()
	stored.Payments = next.Payments
	stored.ExamResults = next.ExamResults
	r.students[id] = stored
	out := stored.Clone()
	return &out, nil
}

func (r *memStudentRepo) get(id string) models.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.students[id].Clone()
}

type memTeacherRepo struct {
	mu       sync.Mutex
	teachers map[string]models.Teacher
	order    []string
	err      error
}

func newMemTeacherRepo(teachers ...models.Teacher) *memTeacherRepo {
	r := &memTeacherRepo{teachers: map[string]models.Teacher{}}
	for _, t := range teachers {
		r.teachers[t.ID] = t.Clone()
		r.order = append(r.order, t.ID)
	}
	return r
}

func (r *memTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Teacher
	for _, id := range r.order {
		t := r.teachers[id]
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(t.Name), q) && !strings.Contains(strings.ToLower(t.Subject), q) {
				continue
			}
		}
		out = append(out, t.Clone())
	}
	return out, len(out), nil
}

func (r *memTeacherRepo) All(ctx context.Context) ([]models.Teacher, error) {
	teachers, _, err := r.List(ctx, models.TeacherFilter{})
	return teachers, err
}

func (r *memTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := t.Clone()
	return &clone, nil
}

func (r *memTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[teacher.ID] = teacher.Clone()
	r.order = append(r.order, teacher.ID)
	return nil
}

func (r *memTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.teachers[teacher.ID]
	if !ok {
		return sql.ErrNoRows
	}
	next := teacher.Clone()
	next.Payments = current.Payments
	r.teachers[teacher.ID] = next
	return nil
}

func (r *memTeacherRepo) Mutate(ctx context.Context, id string, fn func(models.Teacher) (models.Teacher, error)) (*models.Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	stored := current.Clone()
	stored.Payments = next.Payments
	r.teachers[id] = stored
	out := stored.Clone()
	return &out, nil
}

type memCacheRepo struct {
	mu          sync.Mutex
	values      map[string][]byte
	invalidated []string
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{values: map[string][]byte{}}
}

func (c *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	return nil
}

func (c *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			delete(c.values, key)
		}
	}
	return nil
}

func (c *memCacheRepo) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

func studentWithScores(id, name string, marks, oral int, subjects int) models.Student {
	scores := make([]models.ExamScore, subjects)
	for i := range scores {
		scores[i] = models.ExamScore{Subject: "S" + string(rune('A'+i)), Marks: marks, OralMarks: oral, MaxMarks: 100}
	}
	return models.Student{
		ID:            id,
		Name:          name,
		ClassName:     "10-A",
		AdmissionFees: 5000,
		MonthlyFees:   2000,
		AdmissionDate: "2024-01-10",
		ExamResults:   models.ExamResults{{TermName: "Term 1", Scores: scores}},
	}
}
