package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "nested", "brickplay.db")

	db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
	if n := db.Stats().MaxOpenConnections; n != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", n)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); !errors.Is(err, ErrNoPath) {
		t.Errorf("Open() error = %v, want ErrNoPath", err)
	}
}

func TestConfigDSN(t *testing.T) {
	dsn := Config{Path: "/var/lib/brickplay/db.sqlite", WALMode: true, BusyTimeout: 3}.dsn()

	if !strings.HasPrefix(dsn, "file:/var/lib/brickplay/db.sqlite?") {
		t.Errorf("dsn = %q", dsn)
	}
	for _, want := range []string{"_busy_timeout=3000", "_foreign_keys=on", "_journal_mode=WAL"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %s", dsn, want)
		}
	}
	if strings.Contains(Config{Path: "x.db"}.dsn(), "_journal_mode") {
		t.Error("journal mode set without WALMode")
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, stmt := range []string{
		"CREATE TABLE parent (id TEXT PRIMARY KEY)",
		"CREATE TABLE child (id TEXT PRIMARY KEY, parent_id TEXT NOT NULL REFERENCES parent(id) ON DELETE CASCADE)",
		"INSERT INTO parent (id) VALUES ('p')",
		"INSERT INTO child (id, parent_id) VALUES ('c', 'p')",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO child (id, parent_id) VALUES ('orphan', 'nope')"); err == nil {
		t.Error("insert with a dangling reference should fail")
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM parent WHERE id = 'p'"); err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM child").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("children after parent delete = %d, want 0", n)
	}
}

func TestHealthCheckAndClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close should fail")
	}

	var zero DB
	if err := zero.Close(); err != nil {
		t.Errorf("Close() on zero DB error = %v", err)
	}
}

func TestInTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE intx_test (value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	err := db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO intx_test (value) VALUES ('kept')")
		return err
	})
	if err != nil {
		t.Fatalf("InTx() commit path error = %v", err)
	}

	boom := errors.New("boom")
	err = db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO intx_test (value) VALUES ('dropped')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	var values []string
	rows, err := db.QueryContext(ctx, "SELECT value FROM intx_test")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatal(err)
		}
		values = append(values, v)
	}
	if len(values) != 1 || values[0] != "kept" {
		t.Errorf("rows = %v, want [kept]", values)
	}
}
