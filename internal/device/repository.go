package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists the device catalogue.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Info, error)

	// List retrieves all devices ordered by name.
	List(ctx context.Context) ([]Info, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, info *Info) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, info *Info) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository over an open SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDeviceColumns = `
	SELECT id, name, family, channel_count, address, created_at, updated_at
	FROM devices`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Info, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceColumns+` WHERE id = ?`, id)
	info, err := scanInfoRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return info, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Info, error) {
	rows, err := r.db.QueryContext(ctx, selectDeviceColumns+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		info, err := scanInfoRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		infos = append(infos, *info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return infos, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, info *Info) error {
	now := time.Now().UTC()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	info.UpdatedAt = now

	query := `
		INSERT INTO devices (id, name, family, channel_count, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		info.ID,
		info.Name,
		string(info.Family),
		info.ChannelCount,
		info.Address,
		info.CreatedAt.Format(time.RFC3339),
		info.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, info *Info) error {
	info.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices
		SET name = ?, family = ?, channel_count = ?, address = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		info.Name,
		string(info.Family),
		info.ChannelCount,
		info.Address,
		info.UpdatedAt.Format(time.RFC3339),
		info.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result, ErrDeviceNotFound)
}

// requireRow maps "no rows affected" onto notFound.
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

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanInfoRow scans a row or rows result into an Info.
func scanInfoRow(scanner rowScanner) (*Info, error) {
	var (
		info                 Info
		family               string
		createdAt, updatedAt string
	)
	if err := scanner.Scan(
		&info.ID,
		&info.Name,
		&family,
		&info.ChannelCount,
		&info.Address,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	info.Family = Family(family)

	var err error
	if info.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if info.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &info, nil
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
