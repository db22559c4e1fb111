// Package database provides SQLite database connectivity for Brickplay Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations
//   - Connection pooling and lifecycle management
//
// The database holds the device catalogue, creations with their controller
// profiles, events and actions, and the audit trail.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or have
// DEFAULT values, and each .up.sql has a matching .down.sql.
package database
