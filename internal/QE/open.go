package QE

import (
	"database/sql"
	"fmt"
	"strings"
)

// DriverFor maps an engine name to the database/sql driver registered for it
// in this build.
func DriverFor(engine string) (string, error) {
	switch strings.ToLower(engine) {
	case "sqlite":
		return sqliteDriver, nil
	case "sqlite3", "mattn":
		if !cgoSQLite {
			return "", fmt.Errorf("engine %q requires building with -tags cgo_sqlite", engine)
		}
		return "sqlite3", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	default:
		return "", fmt.Errorf("unknown engine %q (expected sqlite, sqlite3 or postgres)", engine)
	}
}

// Open connects to engine at dsn. SQLite handles are pinned to a single
// connection: every new connection to ":memory:" would be a fresh database.
func Open(engine, dsn string) (*sql.DB, error) {
	driver, err := DriverFor(engine)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", engine, err)
	}
	if driver != "pgx" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
