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

const scheduleColumns = `id, tenant_id, department_id, course_id, name, day_of_week, start_time, end_time, owner_id, created_at, updated_at`

// ScheduleRepository provides database access for recurring schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new instance of ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID returns a schedule scoped to a tenant.
func (r *ScheduleRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Schedule, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedules WHERE id = $1 AND tenant_id = $2 LIMIT 1`, scheduleColumns)
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule by id: %w", err)
	}
	return &schedule, nil
}

// List returns schedules based on filters with total count.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	baseQuery := `FROM schedules WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND department_id = $%d", len(args)+1)
		args = append(args, filter.DepartmentID)
	}
	if filter.OwnerID != "" {
		baseQuery += fmt.Sprintf(" AND owner_id = $%d", len(args)+1)
		args = append(args, filter.OwnerID)
	}
	if filter.DayOfWeek != nil {
		baseQuery += fmt.Sprintf(" AND day_of_week = $%d", len(args)+1)
		args = append(args, *filter.DayOfWeek)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "day_of_week": true, "start_time": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", scheduleColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// Create inserts a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, tenant_id, department_id, course_id, name, day_of_week, start_time, end_time, owner_id, created_at, updated_at) VALUES (:id, :tenant_id, :department_id, :course_id, :name, :day_of_week, :start_time, :end_time, :owner_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update updates mutable schedule fields.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET department_id = :department_id, course_id = :course_id, name = :name, day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, owner_id = :owner_id, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
