// Package store owns the relational database file backing the library.
// It provides the connection, schema migration, a prepared-statement cache
// and scoped write transactions. The store is single-writer: all mutations
// are funneled through WithTx, which serializes against other writers.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the name of the relational file inside the library directory.
const DBFileName = "musik.db"

// ErrOpen is returned when the database cannot be created or migrated.
var ErrOpen = errors.New("store: open")

// Store wraps the SQLite handle for one library.
type Store struct {
	db   *sql.DB
	path string

	writeMu sync.Mutex

	stmtMu sync.Mutex
	stmts  map[string]*sql.Stmt
}

// Open opens (creating if necessary) the database at path and migrates it
// to the current schema version.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	// Configure SQLite for concurrent reads alongside the single writer.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrOpen, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	return &Store{
		db:    db,
		path:  path,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

// Close finalizes cached statements and closes the database.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		stmt.Close()
	}
	s.stmts = nil
	s.stmtMu.Unlock()
	return s.db.Close()
}

// DB exposes the raw handle for read queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Cached returns a prepared statement for query, preparing it on first use.
// Statements are reset by database/sql between uses, never finalized until
// Close.
func (s *Store) Cached(query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if s.stmts == nil {
		return nil, errors.New("store: closed")
	}
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}
