package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/peerbot/peerbot/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the SQLite database named in conf with foreign keys
// enforced. The pool is capped at one connection: the engine is strictly
// sequential and SQLite allows a single writer anyway.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", DSN(conf.Database.Name))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

// DSN builds the connection string for a database name or path. The special
// name ":memory:" yields a private in-memory database that lives as long as
// its (single) connection.
func DSN(name string) string {
	if name == ":memory:" {
		return "file::memory:?_fk=1"
	}
	return fmt.Sprintf("file:%s?_fk=1", name)
}

func Migrate(db *sql.DB) error {
	return RunMigrations("up", db)
}

// RunMigrations runs an arbitrary goose command ("up", "down", "status", ...)
// against the embedded migrations.
func RunMigrations(command string, db *sql.DB, args ...string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Run(command, db, "migrations", args...); err != nil {
		return errors.Wrapf(err, "running migrations %s", command)
	}
	return nil
}
