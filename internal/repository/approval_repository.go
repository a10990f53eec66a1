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

const approvalColumns = `a.id, a.tenant_id, a.user_id, a.requested_role, a.status, a.reason, a.reviewed_by, a.reviewed_at, a.created_at`

// ApprovalRepository provides database access for registration approvals.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates a new instance of ApprovalRepository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// FindByID returns an approval with applicant fields, scoped to a tenant.
func (r *ApprovalRepository) FindByID(ctx context.Context, tenantID, id string) (*models.ApprovalDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.email, u.full_name FROM approvals a JOIN users u ON u.id = a.user_id WHERE a.id = $1 AND a.tenant_id = $2 LIMIT 1`, approvalColumns)
	var approval models.ApprovalDetail
	if err := r.db.GetContext(ctx, &approval, query, id, tenantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find approval by id: %w", err)
	}
	return &approval, nil
}

// List returns approvals based on filters with total count.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalDetail, int, error) {
	baseQuery := `FROM approvals a JOIN users u ON u.id = a.user_id WHERE a.tenant_id = $1`
	args := []interface{}{filter.TenantID}

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND a.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"created_at": true, "reviewed_at": true, "status": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortBy = "a." + sortBy

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

	listQuery := fmt.Sprintf("SELECT %s, u.email, u.full_name %s ORDER BY %s %s LIMIT %d OFFSET %d", approvalColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var approvals []models.ApprovalDetail
	if err := r.db.SelectContext(ctx, &approvals, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list approvals: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approvals: %w", err)
	}

	return approvals, total, nil
}

// Create inserts a pending approval.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalPending
	}

	const query = `INSERT INTO approvals (id, tenant_id, user_id, requested_role, status, reason, created_at)
		VALUES (:id, :tenant_id, :user_id, :requested_role, :status, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// Decide records a final decision on a pending approval. Returns
// ErrStateConflict when the approval was already decided.
func (r *ApprovalRepository) Decide(ctx context.Context, tenantID, id string, status models.ApprovalStatus, reviewerID string, reason *string, at time.Time) error {
	const query = `UPDATE approvals SET status = $3, reviewed_by = $4, reviewed_at = $5, reason = COALESCE($6, reason) WHERE id = $1 AND tenant_id = $2 AND status = $7`
	result, err := r.db.ExecContext(ctx, query, id, tenantID, status, reviewerID, at, reason, models.ApprovalPending)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide approval rows: %w", err)
	}
	if affected == 0 {
		return ErrStateConflict
	}
	return nil
}
