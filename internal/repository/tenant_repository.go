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

const tenantColumns = `id, name, slug, type, status, contact_email, suspended_at, created_at, updated_at`

// TenantRepository provides database access for tenant management.
type TenantRepository struct {
	db *sqlx.DB
}

// NewTenantRepository creates a new instance of TenantRepository.
func NewTenantRepository(db *sqlx.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// FindByID returns a tenant by identifier.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE id = $1 LIMIT 1`, tenantColumns)
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return &tenant, nil
}

// FindBySlug returns a tenant by its URL slug.
func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := fmt.Sprintf(`SELECT %s FROM tenants WHERE slug = $1 LIMIT 1`, tenantColumns)
	var tenant models.Tenant
	if err := r.db.GetContext(ctx, &tenant, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tenant by slug: %w", err)
	}
	return &tenant, nil
}

// List returns tenants based on filters with total count.
func (r *TenantRepository) List(ctx context.Context, filter models.TenantFilter) ([]models.Tenant, int, error) {
	baseQuery := `FROM tenants WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(slug) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"slug":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", tenantColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var tenants []models.Tenant
	if err := r.db.SelectContext(ctx, &tenants, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	return tenants, total, nil
}

// Create inserts a new tenant.
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	const query = `INSERT INTO tenants (id, name, slug, type, status, contact_email, created_at, updated_at) VALUES (:id, :name, :slug, :type, :status, :contact_email, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// Update updates mutable tenant fields.
func (r *TenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tenants SET name = :name, contact_email = :contact_email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return nil
}

// UpdateStatus suspends or reactivates a tenant.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status models.TenantStatus, suspendedAt *time.Time) error {
	const query = `UPDATE tenants SET status = $2, suspended_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, suspendedAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("update tenant status: %w", err)
	}
	return nil
}
