package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			family        TEXT NOT NULL,
			channel_count INTEGER NOT NULL CHECK (channel_count > 0),
			address       TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_devices_family ON devices(family);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testInfo creates a catalogue record for testing.
func testInfo(id, name string) *Info {
	return &Info{
		ID:           id,
		Name:         name,
		Family:       FamilyBuWizz2,
		ChannelCount: 4,
		Address:      "90:84:2B:00:00:01",
	}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	info := testInfo("bw-1", "Crane")
	if err := repo.Create(ctx, info); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if info.CreatedAt.IsZero() || info.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}

	got, err := repo.GetByID(ctx, "bw-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Crane" || got.Family != FamilyBuWizz2 || got.ChannelCount != 4 || got.Address != info.Address {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.CreatedAt.Equal(info.CreatedAt.Truncate(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, info.CreatedAt)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testInfo("bw-1", "Crane")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, testInfo("bw-1", "Other"))
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_GetByIDNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_ListOrdered(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, info := range []*Info{testInfo("3", "Truck"), testInfo("1", "Crane"), testInfo("2", "Digger")} {
		if err := repo.Create(ctx, info); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	infos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"Crane", "Digger", "Truck"}
	if len(infos) != len(want) {
		t.Fatalf("List() returned %d, want %d", len(infos), len(want))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Errorf("List()[%d] = %s, want %s", i, infos[i].Name, name)
		}
	}
}

func TestSQLiteRepository_ListEmpty(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	infos, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List() = %d entries, want 0", len(infos))
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	info := testInfo("bw-1", "Crane")
	if err := repo.Create(ctx, info); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	info.Name = "Tower Crane"
	info.ChannelCount = 2
	if err := repo.Update(ctx, info); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "bw-1")
	if got.Name != "Tower Crane" || got.ChannelCount != 2 {
		t.Errorf("after Update() = %+v", got)
	}

	if err := repo.Update(ctx, testInfo("missing", "X")); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, testInfo("bw-1", "Crane")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, "bw-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "bw-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete(again) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"wrapped unique", fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), true},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false},
		{"plain text", errors.New("UNIQUE constraint failed: devices.id"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueConstraintError(tt.err); got != tt.want {
				t.Errorf("isUniqueConstraintError() = %v, want %v", got, tt.want)
			}
		})
	}
}
