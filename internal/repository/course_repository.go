package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartattend/smartattend-api/internal/models"
)

const courseColumns = `id, tenant_id, name, code, created_at, updated_at`

// CourseRepository provides database access for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new instance of CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course scoped to a tenant.
func (r *CourseRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1 AND tenant_id = $2 LIMIT 1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// List returns courses for a tenant ordered by name.
func (r *CourseRepository) List(ctx context.Context, tenantID, search string) ([]models.Course, error) {
	baseQuery := fmt.Sprintf(`SELECT %s FROM courses WHERE tenant_id = $1`, courseColumns)
	args := []interface{}{tenantID}
	if search != "" {
		baseQuery += " AND (LOWER(name) LIKE $2 OR LOWER(code) LIKE $2)"
		args = append(args, "%"+strings.ToLower(search)+"%")
	}
	baseQuery += " ORDER BY name ASC"

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, baseQuery, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, tenant_id, name, code, created_at, updated_at) VALUES (:id, :tenant_id, :name, :code, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update updates mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, code = :code, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM courses WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}
