// Package migrations embeds the SQL migration files into the binary.
//
// Importing it (usually blank) registers the files with the database
// package, so Migrate works without the SQL present on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/brickplay-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
