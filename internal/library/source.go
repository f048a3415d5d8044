package library

import (
	"database/sql"

	"github.com/llehouerou/cadence/internal/metadata"
)

// ScanResult reports how a scan session ended.
type ScanResult int

const (
	// ScanCommit: the session's per-file transactions were committed.
	// Also returned after an interrupt for the files that made it in.
	ScanCommit ScanResult = iota
	// ScanRollback: a store-level error aborted the session.
	ScanRollback
)

func (r ScanResult) String() string {
	if r == ScanRollback {
		return "rollback"
	}
	return "commit"
}

// Source is the extension surface by which non-filesystem scanners
// (multi-track container formats, optical media) contribute tracks. A
// track contributed by a source is identified by the pair
// (source id, external id), irrespective of any filesystem location.
type Source interface {
	// SourceID identifies the scanner; stored on every track it writes.
	SourceID() int32

	// NeedsTrackScan reports whether ScanTrack should be called to
	// refresh individual tracks outside a full Scan.
	NeedsTrackScan() bool

	// Scan walks the source's universe and writes tracks through writer.
	// paths carries the library's configured roots; sources that do not
	// care about roots ignore it. Implementations must poll the
	// interrupt predicate at least once per directory-sized unit of
	// work.
	Scan(writer *TrackWriter, paths []string, interrupted func() bool) ScanResult

	// ScanTrack refreshes the single track identified by externalID,
	// emitting into sink and saving through writer.
	ScanTrack(writer *TrackWriter, sink metadata.Sink, externalID string)

	// OnBeforeScan and OnAfterScan bracket every session the source
	// takes part in.
	OnBeforeScan()
	OnAfterScan()

	// HasStableIds reports whether the source's external ids survive
	// across sessions; stable-id sources are synced incrementally and
	// their absent ids are removed from the store.
	HasStableIds() bool

	// Interrupt asks the source to end its Scan at the next boundary.
	Interrupt()
}

// SyncExternalIDs removes a stable-id source's tracks whose external id is
// not in present, cascading through the junction tables. Sources call
// this after a full scan so ids they no longer report disappear from the
// store.
func (l *Library) SyncExternalIDs(sourceID int32, present []string) error {
	keep := make(map[string]bool, len(present))
	for _, id := range present {
		keep[id] = true
	}

	rows, err := l.store.DB().Query(`
		SELECT id, external_id FROM tracks WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return err
	}
	var doomed []int64
	for rows.Next() {
		var id int64
		var externalID string
		if err := rows.Scan(&id, &externalID); err != nil {
			rows.Close()
			return err
		}
		if !keep[externalID] {
			doomed = append(doomed, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(doomed) == 0 {
		return nil
	}

	return l.store.WithTx(func(tx *sql.Tx) error {
		for _, id := range doomed {
			for _, q := range []string{
				`DELETE FROM track_artists WHERE track_id = ?`,
				`DELETE FROM track_genres WHERE track_id = ?`,
				`DELETE FROM track_meta WHERE track_id = ?`,
				`DELETE FROM play_queue WHERE track_id = ?`,
				`DELETE FROM playlist_tracks WHERE track_id = ?`,
				`DELETE FROM tracks WHERE id = ?`,
			} {
				if _, err := tx.Exec(q, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
