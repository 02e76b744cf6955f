package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Config struct {
	Path string
}

func DefaultConfig() Config {
	if p := os.Getenv("TAFARRAJ_DB_PATH"); p != "" {
		return Config{Path: p}
	}

	// local default: ~/.tafarraj/catalog.db
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Path: filepath.Join(home, ".tafarraj", "catalog.db"),
	}
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	return open(cfg.Path, "PRAGMA journal_mode = WAL;")
}

// OpenReadOnly opens an existing database without write access. It fails
// when the file or its schema is missing.
func OpenReadOnly(cfg Config) (*sql.DB, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.Path, err)
	}
	db, err := open("file:" + cfg.Path + "?mode=ro")
	if err != nil {
		return nil, err
	}
	ok, err := HasSchema(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if !ok {
		_ = db.Close()
		return nil, fmt.Errorf("database %s has no schema, run migrate first", cfg.Path)
	}
	return db, nil
}

// HasSchema reports whether the catalog tables exist.
func HasSchema(db *sql.DB) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'shows'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check schema: %w", err)
	}
	return n > 0, nil
}

// OpenMemory opens a private in-memory database. The pool is pinned to a
// single connection so every query sees the same database.
func OpenMemory() (*sql.DB, error) {
	return open(":memory:")
}

func open(dsn string, pragmas ...string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// ingestion is a single writer; one connection also keeps :memory: coherent
	db.SetMaxOpenConns(1)

	pragmas = append([]string{`PRAGMA foreign_keys = ON;`}, pragmas...)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}
