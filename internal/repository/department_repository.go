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

const departmentColumns = `id, tenant_id, name, code, head_id, created_at, updated_at`

// DepartmentRepository provides database access for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository creates a new instance of DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// FindByID returns a department scoped to a tenant.
func (r *DepartmentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE id = $1 AND tenant_id = $2 LIMIT 1`, departmentColumns)
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by id: %w", err)
	}
	return &dept, nil
}

// FindByCode returns a department by unique tenant code.
func (r *DepartmentRepository) FindByCode(ctx context.Context, tenantID, code string) (*models.Department, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments WHERE tenant_id = $1 AND code = $2 LIMIT 1`, departmentColumns)
	var dept models.Department
	if err := r.db.GetContext(ctx, &dept, query, tenantID, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find department by code: %w", err)
	}
	return &dept, nil
}

// List returns departments for a tenant with total count.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.Department, int, error) {
	baseQuery := `FROM departments WHERE tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "code": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "name"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", departmentColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}

	return departments, total, nil
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, dept *models.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = now
	}
	dept.UpdatedAt = now

	const query = `INSERT INTO departments (id, tenant_id, name, code, head_id, created_at, updated_at) VALUES (:id, :tenant_id, :name, :code, :head_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update updates mutable department fields.
func (r *DepartmentRepository) Update(ctx context.Context, dept *models.Department) error {
	dept.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, code = :code, head_id = :head_id, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, dept); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}

// Delete removes a department. Members keep their rows with department unset.
func (r *DepartmentRepository) Delete(ctx context.Context, tenantID, id string) error {
	const query = `DELETE FROM departments WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return nil
}
