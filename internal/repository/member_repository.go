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

const memberColumns = `m.id, m.tenant_id, m.user_id, m.department_id, m.kind, m.code, m.position, m.joined_at, m.active, m.created_at, m.updated_at`

// MemberRepository provides database access for tenant rosters.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new instance of MemberRepository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// FindByID returns a member with joined user fields, scoped to a tenant.
func (r *MemberRepository) FindByID(ctx context.Context, tenantID, id string) (*models.MemberDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name, u.email FROM members m JOIN users u ON u.id = m.user_id WHERE m.id = $1 AND m.tenant_id = $2 LIMIT 1`, memberColumns)
	var member models.MemberDetail
	if err := r.db.GetContext(ctx, &member, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find member by id: %w", err)
	}
	return &member, nil
}

// FindByUserID returns the roster entry for a user within a tenant.
func (r *MemberRepository) FindByUserID(ctx context.Context, tenantID, userID string) (*models.MemberDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name, u.email FROM members m JOIN users u ON u.id = m.user_id WHERE m.user_id = $1 AND m.tenant_id = $2 LIMIT 1`, memberColumns)
	var member models.MemberDetail
	if err := r.db.GetContext(ctx, &member, query, userID, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find member by user id: %w", err)
	}
	return &member, nil
}

// FindByCode returns a member by unique tenant code.
func (r *MemberRepository) FindByCode(ctx context.Context, tenantID, code string) (*models.MemberDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name, u.email FROM members m JOIN users u ON u.id = m.user_id WHERE m.tenant_id = $1 AND m.code = $2 LIMIT 1`, memberColumns)
	var member models.MemberDetail
	if err := r.db.GetContext(ctx, &member, query, tenantID, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find member by code: %w", err)
	}
	return &member, nil
}

// List returns roster entries with joined user fields and total count.
func (r *MemberRepository) List(ctx context.Context, filter models.MemberFilter) ([]models.MemberDetail, int, error) {
	baseQuery := `FROM members m JOIN users u ON u.id = m.user_id WHERE m.tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.DepartmentID != "" {
		baseQuery += fmt.Sprintf(" AND m.department_id = $%d", len(args)+1)
		args = append(args, filter.DepartmentID)
	}
	if filter.Kind != nil {
		baseQuery += fmt.Sprintf(" AND m.kind = $%d", len(args)+1)
		args = append(args, *filter.Kind)
	}
	if filter.Active != nil {
		baseQuery += fmt.Sprintf(" AND m.active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(u.full_name) LIKE $%d OR LOWER(m.code) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"code":      "m.code",
		"joined_at": "m.joined_at",
		"full_name": "u.full_name",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "u.full_name"
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

	listQuery := fmt.Sprintf("SELECT %s, u.full_name, u.email %s ORDER BY %s %s LIMIT %d OFFSET %d", memberColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var members []models.MemberDetail
	if err := r.db.SelectContext(ctx, &members, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count members: %w", err)
	}

	return members, total, nil
}

// Create inserts a roster entry.
func (r *MemberRepository) Create(ctx context.Context, member *models.Member) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = now
	}
	member.UpdatedAt = now

	const query = `INSERT INTO members (id, tenant_id, user_id, department_id, kind, code, position, joined_at, active, created_at, updated_at) VALUES (:id, :tenant_id, :user_id, :department_id, :kind, :code, :position, :joined_at, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// Update updates mutable roster fields.
func (r *MemberRepository) Update(ctx context.Context, member *models.Member) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE members SET department_id = :department_id, code = :code, position = :position, active = :active, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// Deactivate soft-removes a member from the roster.
func (r *MemberRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE members SET active = FALSE, updated_at = $3 WHERE id = $1 AND tenant_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, tenantID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	return nil
}
