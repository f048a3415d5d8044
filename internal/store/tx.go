package store

import (
	"database/sql"
	"fmt"
)

// WithTx executes fn within a write transaction, serialized against all
// other writers. It handles Begin, Rollback on error, and Commit on success.
func (s *Store) WithTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

var savepointSeq int

// WithSavepoint runs fn inside a savepoint on an already-open transaction.
// Callers that may themselves be called inside a transaction use this to
// degrade a nested write scope instead of opening a second transaction.
func WithSavepoint(tx *sql.Tx, fn func(tx *sql.Tx) error) error {
	savepointSeq++
	name := fmt.Sprintf("sp_%d", savepointSeq)

	if _, err := tx.Exec("SAVEPOINT " + name); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_, _ = tx.Exec("ROLLBACK TO " + name)
		_, _ = tx.Exec("RELEASE " + name)
		return err
	}
	_, err := tx.Exec("RELEASE " + name)
	return err
}

// LastInsertID returns the rowid assigned by the most recent insert on tx.
func LastInsertID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT last_insert_rowid()`).Scan(&id)
	return id, err
}
