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

const incidentColumns = `id, tenant_id, title, description, severity, status, reported_by, assigned_to, resolved_at, created_at, updated_at`

// IncidentRepository provides database access for incidents and their
// timeline events.
type IncidentRepository struct {
	db *sqlx.DB
}

// NewIncidentRepository creates a new instance of IncidentRepository.
func NewIncidentRepository(db *sqlx.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// FindByID returns an incident scoped to a tenant. An empty tenantID matches
// platform-level incidents.
func (r *IncidentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE id = $1`, incidentColumns)
	args := []interface{}{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}
	query += " LIMIT 1"

	var incident models.Incident
	if err := r.db.GetContext(ctx, &incident, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find incident by id: %w", err)
	}
	return &incident, nil
}

// List returns incidents based on filters with total count. An empty
// TenantID lists platform-level incidents.
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, int, error) {
	baseQuery := "FROM incidents WHERE 1=1"
	args := []interface{}{}

	if filter.TenantID != "" {
		baseQuery += fmt.Sprintf(" AND tenant_id = $%d", len(args)+1)
		args = append(args, filter.TenantID)
	} else {
		baseQuery += " AND tenant_id IS NULL"
	}
	if filter.Severity != nil {
		baseQuery += fmt.Sprintf(" AND severity = $%d", len(args)+1)
		args = append(args, *filter.Severity)
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"created_at": true, "updated_at": true, "severity": true, "status": true}
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", incidentColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var incidents []models.Incident
	if err := r.db.SelectContext(ctx, &incidents, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list incidents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count incidents: %w", err)
	}

	return incidents, total, nil
}

// Create inserts a new incident.
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = now
	}
	incident.UpdatedAt = now

	const query = `INSERT INTO incidents (id, tenant_id, title, description, severity, status, reported_by, assigned_to, created_at, updated_at)
		VALUES (:id, :tenant_id, :title, :description, :severity, :status, :reported_by, :assigned_to, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// Update persists mutable incident fields.
func (r *IncidentRepository) Update(ctx context.Context, incident *models.Incident) error {
	incident.UpdatedAt = time.Now().UTC()
	const query = `UPDATE incidents SET title = :title, description = :description, severity = :severity, status = :status, assigned_to = :assigned_to, resolved_at = :resolved_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, incident); err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	return nil
}

// CreateEvent appends a timeline entry.
func (r *IncidentRepository) CreateEvent(ctx context.Context, event *models.IncidentEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO incident_events (id, incident_id, actor_id, from_status, to_status, note, created_at)
		VALUES (:id, :incident_id, :actor_id, :from_status, :to_status, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create incident event: %w", err)
	}
	return nil
}

// ListEvents returns an incident's timeline oldest first.
func (r *IncidentRepository) ListEvents(ctx context.Context, incidentID string) ([]models.IncidentEvent, error) {
	const query = `SELECT id, incident_id, actor_id, from_status, to_status, note, created_at FROM incident_events WHERE incident_id = $1 ORDER BY created_at ASC`
	var events []models.IncidentEvent
	if err := r.db.SelectContext(ctx, &events, query, incidentID); err != nil {
		return nil, fmt.Errorf("list incident events: %w", err)
	}
	return events, nil
}
