package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "musik.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"tracks", "albums", "artists", "genres",
		"track_artists", "track_genres",
		"meta_keys", "meta_values", "track_meta",
		"thumbnails", "paths", "folders",
		"playlists", "playlist_tracks", "play_queue", "preferences",
	}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow(`
			SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?
		`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "musik.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	s2.Close()
}

func TestOpenBadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(filepath.Join(blocker, "sub", "musik.db"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("error = %v, expected ErrOpen", err)
	}
}

func TestCachedReusesStatements(t *testing.T) {
	s := openTestStore(t)

	stmt1, err := s.Cached(`SELECT COUNT(*) FROM tracks`)
	if err != nil {
		t.Fatal(err)
	}
	stmt2, err := s.Cached(`SELECT COUNT(*) FROM tracks`)
	if err != nil {
		t.Fatal(err)
	}
	if stmt1 != stmt2 {
		t.Error("expected the same prepared statement back")
	}

	var n int
	if err := stmt1.QueryRow().Scan(&n); err != nil {
		t.Fatal(err)
	}
}

func TestWithTxCommit(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO albums (name) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("albums = %d", n)
	}
}

func TestWithTxRollback(t *testing.T) {
	s := openTestStore(t)

	fail := errors.New("boom")
	err := s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO albums (name) VALUES ('a')`); err != nil {
			return err
		}
		return fail
	})
	if !errors.Is(err, fail) {
		t.Fatalf("err = %v", err)
	}

	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM albums`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rollback left %d rows", n)
	}
}

func TestWithSavepointNested(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO albums (name) VALUES ('keep')`); err != nil {
			return err
		}
		// Inner scope fails; only its writes roll back.
		_ = WithSavepoint(tx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(`INSERT INTO albums (name) VALUES ('drop')`); err != nil {
				return err
			}
			return errors.New("inner failure")
		})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	rows, err := s.DB().Query(`SELECT name FROM albums ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	if len(names) != 1 || names[0] != "keep" {
		t.Errorf("albums = %v", names)
	}
}

func TestUniqueConstraints(t *testing.T) {
	s := openTestStore(t)

	err := s.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO artists (name, aggregated) VALUES ('x', 0)`); err != nil {
			return err
		}
		_, err := tx.Exec(`INSERT INTO artists (name, aggregated) VALUES ('x', 0)`)
		return err
	})
	if err == nil {
		t.Fatal("duplicate artist name must violate UNIQUE")
	}
}

func TestPreferences(t *testing.T) {
	s := openTestStore(t)

	if v, err := s.GetIntPref(PrefLastPlayQueueIndex, -1); err != nil || v != -1 {
		t.Fatalf("default int pref = %d, %v", v, err)
	}
	if err := s.SetIntPref(PrefLastPlayQueueIndex, 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetIntPref(PrefLastPlayQueueIndex, -1); v != 5 {
		t.Errorf("int pref = %d", v)
	}

	if err := s.SetFloatPref(PrefLastPlayQueueTime, 42.5); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetFloatPref(PrefLastPlayQueueTime, 0); v != 42.5 {
		t.Errorf("float pref = %v", v)
	}

	// Overwrite keeps a single row.
	if err := s.SetIntPref(PrefLastPlayQueueIndex, 7); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM preferences WHERE key = ?`, PrefLastPlayQueueIndex).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("preference rows = %d", n)
	}
}
