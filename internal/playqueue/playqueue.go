// Package playqueue persists the "now playing" queue between runs: the
// ordered track ids in the play_queue table plus the active index and
// playback offset in the preferences table.
package playqueue

import (
	"database/sql"

	"github.com/llehouerou/cadence/internal/store"
)

// Snapshot is the persisted queue state.
type Snapshot struct {
	TrackIDs []int64
	// Index is the active queue position, -1 when nothing was playing.
	Index int
	// Offset is the playback position within the active track, in
	// seconds.
	Offset float64
}

// Store saves and restores queue snapshots.
type Store struct {
	store *store.Store
}

// New returns a queue store over the library's store.
func New(st *store.Store) *Store {
	return &Store{store: st}
}

// Save replaces the persisted queue with snap.
func (s *Store) Save(snap Snapshot) error {
	err := s.store.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM play_queue`); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`
			INSERT INTO play_queue (track_id, sort_order) VALUES (?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, id := range snap.TrackIDs {
			if _, err := stmt.Exec(id, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.SetIntPref(store.PrefLastPlayQueueIndex, snap.Index); err != nil {
		return err
	}
	return s.store.SetFloatPref(store.PrefLastPlayQueueTime, snap.Offset)
}

// Load returns the persisted queue. Queue entries whose track no longer
// exists are dropped; the active index is clamped to the surviving list.
func (s *Store) Load() (*Snapshot, error) {
	rows, err := s.store.DB().Query(`
		SELECT pq.track_id
		FROM play_queue pq
		JOIN tracks t ON t.id = pq.track_id
		ORDER BY pq.sort_order
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &Snapshot{Index: -1}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		snap.TrackIDs = append(snap.TrackIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.Index, err = s.store.GetIntPref(store.PrefLastPlayQueueIndex, -1)
	if err != nil {
		return nil, err
	}
	if snap.Index >= len(snap.TrackIDs) {
		snap.Index = len(snap.TrackIDs) - 1
	}
	snap.Offset, err = s.store.GetFloatPref(store.PrefLastPlayQueueTime, 0)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Clear drops the persisted queue.
func (s *Store) Clear() error {
	err := s.store.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM play_queue`)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.store.SetIntPref(store.PrefLastPlayQueueIndex, -1); err != nil {
		return err
	}
	return s.store.SetFloatPref(store.PrefLastPlayQueueTime, 0)
}
