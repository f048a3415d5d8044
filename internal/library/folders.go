package library

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
)

// Folder path model: paths.path holds a configured root (no trailing
// separator); folders.relative_path holds the folder's path below the
// root, "" for the root itself, otherwise with a leading "/". A track's
// absolute path is paths.path || folders.relative_path || '/' ||
// tracks.filename.

func relativeFolderPath(root, dir string) (string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return "/" + filepath.ToSlash(rel), nil
}

func ensurePath(tx *sql.Tx, root string) (int64, error) {
	root = strings.TrimRight(root, "/")
	var id int64
	err := tx.QueryRow(`SELECT id FROM paths WHERE path = ?`, root).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO paths (path) VALUES (?)`, root)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func ensureFolder(tx *sql.Tx, pathID int64, relativePath string) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM folders WHERE path_id = ? AND relative_path = ?
	`, pathID, relativePath).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.Exec(`
		INSERT INTO folders (relative_path, path_id) VALUES (?, ?)
	`, relativePath, pathID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// resolveFolder returns the folder id for dir, which must live under
// root, inserting the paths and folders rows if absent.
func resolveFolder(tx *sql.Tx, root, dir string) (int64, error) {
	pathID, err := ensurePath(tx, root)
	if err != nil {
		return 0, err
	}
	rel, err := relativeFolderPath(strings.TrimRight(root, "/"), dir)
	if err != nil {
		return 0, err
	}
	return ensureFolder(tx, pathID, rel)
}

// ResolveFolder resolves (inserting if needed) the folder row for dir
// under root, outside any scan. Used by external indexer sources that
// anchor synthetic tracks to a container file's directory.
func (l *Library) ResolveFolder(root, dir string) (int64, error) {
	var folderID int64
	err := l.store.WithTx(func(tx *sql.Tx) error {
		var err error
		folderID, err = resolveFolder(tx, root, dir)
		return err
	})
	return folderID, err
}
