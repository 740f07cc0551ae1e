package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_mysql.sql
var schemaMySQL string

// Open connects to the check store and applies the schema.  Two drivers are
// supported because the store runs on different tiers depending on
// connectivity: "sqlite3" for the embedded workstation database and "mysql"
// for the on-site relay service.  Both use driver-neutral SQL with ?
// placeholders, so the repositories are shared.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case "sqlite3", "mysql":
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite allows one writer at a time; a single pooled connection
		// avoids SQLITE_BUSY under concurrent handlers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		// Pool settings, same as the relay's other services.
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := applySchema(db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// MySQLDSN builds a DSN for the relay-tier store.  parseTime=true maps
// DATETIME columns to time.Time and loc=UTC keeps comparisons consistent
// with the UTC timestamps written by the repositories.
func MySQLDSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
}

// applyPragmas configures the embedded database for durable concurrent use:
// WAL journaling, NORMAL synchronous mode, a busy timeout for lock
// contention and foreign key enforcement.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// applySchema creates the tables if they do not exist.  The schema files use
// CREATE TABLE IF NOT EXISTS throughout, so this is idempotent and safe to
// run on every startup.  Statements are executed one at a time because the
// MySQL driver rejects multi-statement batches by default.
func applySchema(db *sql.DB, driver string) error {
	schema := schemaSQLite
	if driver == "mysql" {
		schema = schemaMySQL
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
