package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string    // optional: filter by action (action.saved, session.start, ...)
	EntityType string    // optional: filter by entity type (action, creation, device, session)
	EntityID   string    // optional: filter by specific entity ID
	Source     string    // optional: filter by source (api, system)
	Since      time.Time // optional: only entries at or after this time
	Limit      int       // default 50, max 200
	Offset     int       // pagination offset
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores audit logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create stores entry, filling in its ID, timestamp and source when unset.
func (r *SQLiteRepository) Create(ctx context.Context, entry *AuditLog) error {
	if entry.Action == "" || entry.EntityType == "" {
		return fmt.Errorf("%w: action and entity type are required", ErrInvalidEntry)
	}
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Source == "" {
		entry.Source = SourceSystem
	}

	var details sql.NullString
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, subject, source, details, created_at)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`,
		entry.ID, entry.Action, entry.EntityType, entry.EntityID, entry.Subject,
		entry.Source, details, entry.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// clause renders the filter's conditions as a WHERE clause and its args.
func (f Filter) clause() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}

	for col, v := range map[string]string{
		"action":      f.Action,
		"entity_type": f.EntityType,
		"entity_id":   f.EntityID,
		"source":      f.Source,
	} {
		if v != "" {
			add(col+" = ?", v)
		}
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", f.Since.UTC().Format(time.RFC3339))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of matching entries, newest first, with the total
// number of matches.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter.Limit = min(max(filter.Limit, 0), MaxLimit)
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	filter.Offset = max(filter.Offset, 0)

	where, args := filter.clause()

	var total int
	//nolint:gosec // where holds only placeholders
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	//nolint:gosec // where holds only placeholders
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, entity_type, entity_id, subject, source, details, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	result := &ListResult{Logs: []AuditLog{}, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		result.Logs = append(result.Logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}
	return result, nil
}

func scanAuditLog(rows *sql.Rows) (AuditLog, error) {
	var (
		entry                     AuditLog
		entityID, subject, detail sql.NullString
		createdAt                 string
	)
	err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType,
		&entityID, &subject, &entry.Source, &detail, &createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("scanning audit log: %w", err)
	}
	entry.EntityID = entityID.String
	entry.Subject = subject.String

	// Details are informational; an unreadable blob is dropped, not fatal.
	if detail.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detail.String), &details) == nil {
			entry.Details = details
		}
	}

	entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	return entry, nil
}

// Prune deletes entries created before the given time and returns how
// many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < ?`,
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning audit logs: %w", err)
	}
	return n, nil
}
