// Package playlists provides CRUD over named, ordered track lists.
// Entries reference tracks by internal id; positions are contiguous
// sort_order values starting at 0.
package playlists

import (
	"database/sql"
	"errors"

	"github.com/llehouerou/cadence/internal/library"
	"github.com/llehouerou/cadence/internal/store"
)

// Playlist is playlist metadata without its tracks.
type Playlist struct {
	ID   int64
	Name string
}

// Playlists provides database operations for playlists.
type Playlists struct {
	store *store.Store
}

// New creates a new Playlists instance over the library's store.
func New(st *store.Store) *Playlists {
	return &Playlists{store: st}
}

// Create creates a playlist, possibly empty, and returns its id.
func (p *Playlists) Create(name string, trackIDs []int64) (int64, error) {
	var id int64
	err := p.store.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO playlists (name) VALUES (?)`, name)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return insertTracks(tx, id, 0, trackIDs)
	})
	return id, err
}

// Rename renames a playlist.
func (p *Playlists) Rename(id int64, name string) error {
	return p.store.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE playlists SET name = ? WHERE id = ?`, name, id)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

// Delete deletes a playlist and its entries.
func (p *Playlists) Delete(id int64) error {
	return p.store.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM playlists WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
}

// List returns all playlists ordered by name.
func (p *Playlists) List() ([]Playlist, error) {
	rows, err := p.store.DB().Query(`
		SELECT id, name FROM playlists ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(&pl.ID, &pl.Name); err != nil {
			return nil, err
		}
		playlists = append(playlists, pl)
	}
	return playlists, rows.Err()
}

// Get returns a playlist by id.
func (p *Playlists) Get(id int64) (*Playlist, error) {
	var pl Playlist
	err := p.store.DB().QueryRow(`
		SELECT id, name FROM playlists WHERE id = ?
	`, id).Scan(&pl.ID, &pl.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

// TrackIDs returns a playlist's track ids in sort order.
func (p *Playlists) TrackIDs(playlistID int64) ([]int64, error) {
	rows, err := p.store.DB().Query(`
		SELECT track_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY sort_order
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TrackCount returns the number of entries in a playlist.
func (p *Playlists) TrackCount(playlistID int64) (int, error) {
	var count int
	err := p.store.DB().QueryRow(`
		SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ?
	`, playlistID).Scan(&count)
	return count, err
}

// Append adds tracks to the end of a playlist by their internal ids.
func (p *Playlists) Append(playlistID int64, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	return p.store.WithTx(func(tx *sql.Tx) error {
		next, err := nextSortOrder(tx, playlistID)
		if err != nil {
			return err
		}
		return insertTracks(tx, playlistID, next, trackIDs)
	})
}

// AppendExternalIDs adds tracks to a playlist resolved through their
// external ids. Unknown ids are skipped.
func (p *Playlists) AppendExternalIDs(playlistID int64, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}
	return p.store.WithTx(func(tx *sql.Tx) error {
		next, err := nextSortOrder(tx, playlistID)
		if err != nil {
			return err
		}
		for _, extID := range externalIDs {
			var trackID int64
			err := tx.QueryRow(`SELECT id FROM tracks WHERE external_id = ?`, extID).Scan(&trackID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`
				INSERT INTO playlist_tracks (playlist_id, track_id, sort_order) VALUES (?, ?, ?)
			`, playlistID, trackID, next); err != nil {
				return err
			}
			next++
		}
		return nil
	})
}

// Remove deletes count entries starting at sortOrder and compacts the
// remaining positions.
func (p *Playlists) Remove(playlistID int64, sortOrder, count int) error {
	if count <= 0 {
		return nil
	}
	return p.store.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM playlist_tracks
			WHERE playlist_id = ? AND sort_order >= ? AND sort_order < ?
		`, playlistID, sortOrder, sortOrder+count); err != nil {
			return err
		}
		_, err := tx.Exec(`
			UPDATE playlist_tracks SET sort_order = sort_order - ?
			WHERE playlist_id = ? AND sort_order >= ?
		`, count, playlistID, sortOrder+count)
		return err
	})
}

// Move shifts the entry at from to position to, preserving the order of
// everything else.
func (p *Playlists) Move(playlistID int64, from, to int) error {
	if from == to {
		return nil
	}
	return p.store.WithTx(func(tx *sql.Tx) error {
		// Park the moving row outside the position range.
		res, err := tx.Exec(`
			UPDATE playlist_tracks SET sort_order = -1
			WHERE playlist_id = ? AND sort_order = ?
		`, playlistID, from)
		if err != nil {
			return err
		}
		if err := requireRow(res); err != nil {
			return err
		}

		if from < to {
			if _, err := tx.Exec(`
				UPDATE playlist_tracks SET sort_order = sort_order - 1
				WHERE playlist_id = ? AND sort_order > ? AND sort_order <= ?
			`, playlistID, from, to); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(`
				UPDATE playlist_tracks SET sort_order = sort_order + 1
				WHERE playlist_id = ? AND sort_order >= ? AND sort_order < ?
			`, playlistID, to, from); err != nil {
				return err
			}
		}

		_, err = tx.Exec(`
			UPDATE playlist_tracks SET sort_order = ?
			WHERE playlist_id = ? AND sort_order = -1
		`, to, playlistID)
		return err
	})
}

// Replace atomically overwrites a playlist's contents.
func (p *Playlists) Replace(playlistID int64, trackIDs []int64) error {
	return p.store.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM playlist_tracks WHERE playlist_id = ?
		`, playlistID); err != nil {
			return err
		}
		return insertTracks(tx, playlistID, 0, trackIDs)
	})
}

func nextSortOrder(tx *sql.Tx, playlistID int64) (int, error) {
	var maxOrder sql.NullInt64
	err := tx.QueryRow(`
		SELECT MAX(sort_order) FROM playlist_tracks WHERE playlist_id = ?
	`, playlistID).Scan(&maxOrder)
	if err != nil {
		return 0, err
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

func insertTracks(tx *sql.Tx, playlistID int64, startOrder int, trackIDs []int64) error {
	if len(trackIDs) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO playlist_tracks (playlist_id, track_id, sort_order) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, trackID := range trackIDs {
		if _, err := stmt.Exec(playlistID, trackID, startOrder+i); err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return library.ErrNotFound
	}
	return nil
}
