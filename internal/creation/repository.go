package creation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists creations and everything bound inside them.
type Repository interface {
	Persistence

	// GetCreation loads a creation with all profiles, events and actions.
	GetCreation(ctx context.Context, id string) (*Creation, error)

	// ListCreations loads every creation ordered by name.
	ListCreations(ctx context.Context) ([]Creation, error)

	// CreateCreation inserts a whole creation tree.
	// Returns ErrCreationExists if the ID is taken.
	CreateCreation(ctx context.Context, c *Creation) error

	// DeleteCreation removes a creation and everything under it.
	DeleteCreation(ctx context.Context, id string) error

	// GetEvent loads one controller event with its actions.
	GetEvent(ctx context.Context, eventID string) (*Event, error)

	// GetAction loads one action.
	GetAction(ctx context.Context, actionID string) (*Action, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// actionColumns is the SELECT column list for action queries.
const actionColumns = `id, event_id, device_id, channel, invert, output_kind, button_type,
			axis_characteristic, max_output_percent, dead_zone_percent, max_servo_angle,
			created_at, updated_at`

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetCreation loads a creation with all profiles, events and actions.
func (r *SQLiteRepository) GetCreation(ctx context.Context, id string) (*Creation, error) {
	var (
		c                    Creation
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM creations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCreationNotFound
		}
		return nil, fmt.Errorf("querying creation by id: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	if err := r.loadProfiles(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCreations loads every creation ordered by name.
func (r *SQLiteRepository) ListCreations(ctx context.Context) ([]Creation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM creations ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying creations: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning creation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating creations: %w", err)
	}

	creations := make([]Creation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetCreation(ctx, id)
		if err != nil {
			return nil, err
		}
		creations = append(creations, *c)
	}
	return creations, nil
}

// loadProfiles fills c.Profiles in position order.
func (r *SQLiteRepository) loadProfiles(ctx context.Context, c *Creation) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM controller_profiles WHERE creation_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return fmt.Errorf("querying profiles: %w", err)
	}
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning profile: %w", err)
		}
		c.Profiles = append(c.Profiles, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating profiles: %w", err)
	}

	for i := range c.Profiles {
		events, err := r.loadEvents(ctx, c.Profiles[i].ID)
		if err != nil {
			return err
		}
		c.Profiles[i].Events = events
	}
	return nil
}

// loadEvents returns a profile's events in position order.
func (r *SQLiteRepository) loadEvents(ctx context.Context, profileID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, event_code FROM controller_events WHERE profile_id = ? ORDER BY position`, profileID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	var events []Event
	for rows.Next() {
		var (
			e     Event
			etype string
		)
		if err := rows.Scan(&e.ID, &etype, &e.Code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = EventType(etype)
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	for i := range events {
		actions, err := r.loadActions(ctx, r.db, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Actions = actions
	}
	return events, nil
}

// loadActions returns an event's actions in insertion order.
func (r *SQLiteRepository) loadActions(ctx context.Context, q queryer, eventID string) ([]Action, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM controller_actions WHERE event_id = ? ORDER BY position`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		a, _, err := scanActionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		actions = append(actions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return actions, nil
}

// CreateCreation inserts a whole creation tree in one transaction.
func (r *SQLiteRepository) CreateCreation(ctx context.Context, c *Creation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO creations (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			c.ID, c.Name, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrCreationExists
			}
			return fmt.Errorf("inserting creation: %w", err)
		}

		for pi := range c.Profiles {
			p := &c.Profiles[pi]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO controller_profiles (id, creation_id, name, position) VALUES (?, ?, ?, ?)`,
				p.ID, c.ID, p.Name, pi); err != nil {
				return fmt.Errorf("inserting profile %q: %w", p.Name, err)
			}
			for ei := range p.Events {
				e := &p.Events[ei]
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO controller_events (id, profile_id, event_type, event_code, position) VALUES (?, ?, ?, ?, ?)`,
					e.ID, p.ID, string(e.Type), e.Code, ei); err != nil {
					return fmt.Errorf("inserting event %s %q: %w", e.Type, e.Code, err)
				}
				for ai := range e.Actions {
					a := &e.Actions[ai]
					a.CreatedAt, a.UpdatedAt = now, now
					if err := insertAction(ctx, tx, e.ID, ai, a); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// DeleteCreation removes a creation; profiles, events and actions cascade.
func (r *SQLiteRepository) DeleteCreation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM creations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting creation: %w", err)
	}
	return requireRow(result, ErrCreationNotFound)
}

// GetEvent loads one controller event with its actions.
func (r *SQLiteRepository) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	var (
		e     Event
		etype string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, event_type, event_code FROM controller_events WHERE id = ?`, eventID,
	).Scan(&e.ID, &etype, &e.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("querying event: %w", err)
	}
	e.Type = EventType(etype)

	if e.Actions, err = r.loadActions(ctx, r.db, e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAction loads one action.
func (r *SQLiteRepository) GetAction(ctx context.Context, actionID string) (*Action, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM controller_actions WHERE id = ?`, actionID)
	a, _, err := scanActionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("querying action: %w", err)
	}
	return a, nil
}

// UpsertAction inserts a new action at the end of the event, or replaces
// an existing one in place. An action without an ID gets a new one. a is
// only updated once the change has committed. An event holds at most
// maxActionsPerEvent actions.
func (r *SQLiteRepository) UpsertAction(ctx context.Context, eventID string, a *Action) error {
	row := *a
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM controller_events WHERE id = ?`, eventID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking event: %w", err)
		}
		if exists == 0 {
			return ErrEventNotFound
		}

		now := time.Now().UTC()
		if row.ID != "" {
			var currentEvent string
			err := tx.QueryRowContext(ctx, `SELECT event_id FROM controller_actions WHERE id = ?`, row.ID).Scan(&currentEvent)
			switch {
			case err == nil && currentEvent != eventID:
				return fmt.Errorf("%w: action %s belongs to another event", ErrInvalidAction, row.ID)
			case err == nil:
				row.UpdatedAt = now
				return updateAction(ctx, tx, &row)
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("checking action: %w", err)
			}
		} else {
			row.ID = GenerateID()
		}

		var count, next int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(MAX(position) + 1, 0) FROM controller_actions WHERE event_id = ?`,
			eventID).Scan(&count, &next)
		if err != nil {
			return fmt.Errorf("finding action position: %w", err)
		}
		if count >= maxActionsPerEvent {
			return fmt.Errorf("%w: event %s already has %d actions", ErrInvalidAction, eventID, maxActionsPerEvent)
		}
		row.CreatedAt, row.UpdatedAt = now, now
		return insertAction(ctx, tx, eventID, next, &row)
	})
	if err != nil {
		return err
	}
	*a = row
	return nil
}

// DeleteAction removes an action by ID.
func (r *SQLiteRepository) DeleteAction(ctx context.Context, a *Action) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM controller_actions WHERE id = ?`, a.ID)
	if err != nil {
		return fmt.Errorf("deleting action: %w", err)
	}
	return requireRow(result, ErrActionNotFound)
}

func insertAction(ctx context.Context, q queryer, eventID string, position int, a *Action) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO controller_actions (
			id, event_id, position, device_id, channel, invert, output_kind, button_type,
			axis_characteristic, max_output_percent, dead_zone_percent, max_servo_angle,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, eventID, position, a.DeviceID, a.Channel, boolToInt(a.Invert),
		string(a.OutputKind), string(a.ButtonType), string(a.AxisCharacteristic),
		a.MaxOutputPercent, a.DeadZonePercent, a.MaxServoAngle,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	return nil
}

func updateAction(ctx context.Context, q queryer, a *Action) error {
	result, err := q.ExecContext(ctx, `
		UPDATE controller_actions
		SET device_id = ?, channel = ?, invert = ?, output_kind = ?, button_type = ?,
			axis_characteristic = ?, max_output_percent = ?, dead_zone_percent = ?,
			max_servo_angle = ?, updated_at = ?
		WHERE id = ?`,
		a.DeviceID, a.Channel, boolToInt(a.Invert), string(a.OutputKind), string(a.ButtonType),
		string(a.AxisCharacteristic), a.MaxOutputPercent, a.DeadZonePercent,
		a.MaxServoAngle, formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating action: %w", err)
	}
	return requireRow(result, ErrActionNotFound)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanActionRow scans an actionColumns row, returning the owning event id.
func scanActionRow(scanner rowScanner) (*Action, string, error) {
	var (
		a                            Action
		eventID                      string
		invert                       int
		outputKind, buttonType, axis string
		createdAt, updatedAt         string
	)
	if err := scanner.Scan(
		&a.ID, &eventID, &a.DeviceID, &a.Channel, &invert,
		&outputKind, &buttonType, &axis,
		&a.MaxOutputPercent, &a.DeadZonePercent, &a.MaxServoAngle,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, "", err
	}
	a.Invert = invert != 0
	a.OutputKind = OutputKind(outputKind)
	a.ButtonType = ButtonType(buttonType)
	a.AxisCharacteristic = AxisCharacteristic(axis)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, eventID, nil
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses an RFC3339 column, yielding the zero time if malformed.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError reports whether err is a primary key or unique
// index violation.
func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
