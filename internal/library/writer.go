package library

import (
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/llehouerou/cadence/internal/metadata"
	"github.com/llehouerou/cadence/internal/store"
	"github.com/llehouerou/cadence/internal/thumbs"
)

// Tag keys consumed into typed columns or vocabulary tables; everything
// else in the bag overflows into meta_keys/meta_values/track_meta.
var consumedKeys = []string{
	metadata.KeyTrack,
	metadata.KeyDisc,
	metadata.KeyBpm,
	metadata.KeyDuration,
	metadata.KeyYear,
	metadata.KeyTitle,
	metadata.KeyFilename,
	metadata.KeyFiletime,
	metadata.KeyFilesize,
	metadata.KeyPath,
	metadata.KeyExtension,
	metadata.KeyGenre,
	metadata.KeyArtist,
	metadata.KeyAlbum,
	metadata.KeyThumbnailID,
}

// SaveRequest carries one track's tag bag and its placement.
type SaveRequest struct {
	Bag      *metadata.Bag
	FolderID int64
	SourceID int32
	// TrackID is the existing row id when updating, 0 for a new track.
	TrackID    int64
	ExternalID string
	SortOrder  int
}

// TrackWriter normalizes tag bags into track rows and their relations.
// All writes for one track happen under a single transaction; a failure
// leaves the store in the pre-call state.
type TrackWriter struct {
	store    *store.Store
	thumbs   *thumbs.Store
	defaults Defaults
	log      *slog.Logger

	interrupt *atomic.Bool
}

// SetInterrupt installs the cooperative interrupt latch checked at the
// start of each save and again before its transaction commits.
func (w *TrackWriter) SetInterrupt(latch *atomic.Bool) {
	w.interrupt = latch
}

// Save writes one track and its relations. Returns the track's row id.
func (w *TrackWriter) Save(req SaveRequest) (int64, error) {
	if w.interrupt != nil && w.interrupt.Load() {
		return 0, opErr("save track", ErrInterrupted, nil)
	}

	bag := req.Bag
	trackID := req.TrackID
	var pendingThumb []byte
	var pendingThumbID int64

	err := w.store.WithTx(func(tx *sql.Tx) error {
		// Updating: remove existing relations. Vocabulary rows they
		// referenced stay; orphan collection is a separate maintenance
		// pass.
		if trackID != 0 {
			for _, q := range []string{
				`DELETE FROM track_genres WHERE track_id = ?`,
				`DELETE FROM track_artists WHERE track_id = ?`,
				`DELETE FROM track_meta WHERE track_id = ?`,
			} {
				if _, err := tx.Exec(q, trackID); err != nil {
					return opErr("clean track relations", ErrSchemaViolation, err)
				}
			}
		}

		// Core upsert. Values bind as text; SQLite affinity stores
		// numeric strings as numbers and keeps unparseable ones raw.
		var err error
		trackID, err = w.upsertTrackRow(tx, req)
		if err != nil {
			return err
		}

		ext := bag.First(metadata.KeyExtension)

		albumID, err := w.upsertAlbum(tx, bag, ext)
		if err != nil {
			return err
		}

		genreID, err := w.normalizeVocabulary(tx, vocabGenres, trackID, bag.Values(metadata.KeyGenre), "")
		if err != nil {
			return err
		}
		artistID, err := w.normalizeVocabulary(tx, vocabArtists, trackID, bag.Values(metadata.KeyArtist), w.defaults.artist(ext))
		if err != nil {
			return err
		}

		thumbnailID, thumbData, err := w.upsertThumbnail(tx, bag)
		if err != nil {
			return err
		}
		pendingThumb = thumbData
		pendingThumbID = thumbnailID

		if _, err := tx.Exec(`
			UPDATE tracks SET album_id = ?, visual_genre_id = ?, visual_artist_id = ?, thumbnail_id = ? WHERE id = ?
		`, albumID, genreID, artistID, thumbnailID, trackID); err != nil {
			return opErr("update track relations", ErrSchemaViolation, err)
		}

		if err := w.writeMetaOverflow(tx, trackID, bag); err != nil {
			return err
		}
		// An interrupt raised while the transaction was open rolls it back.
		if w.interrupt != nil && w.interrupt.Load() {
			return opErr("save track", ErrInterrupted, nil)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// The blob is written after commit; a failure here downgrades the
	// track to no-thumbnail rather than rolling it back.
	if pendingThumb != nil {
		if err := w.thumbs.Write(pendingThumbID, pendingThumb); err != nil {
			w.log.Warn("thumbnail write failed", "thumbnail_id", pendingThumbID, "error", err)
			_ = w.store.WithTx(func(tx *sql.Tx) error {
				if _, err := tx.Exec(`DELETE FROM thumbnails WHERE id = ?`, pendingThumbID); err != nil {
					return err
				}
				_, err := tx.Exec(`UPDATE tracks SET thumbnail_id = 0 WHERE id = ?`, trackID)
				return err
			})
		}
	}

	return trackID, nil
}

// textOrNull binds empty tag values as NULL so numeric-affinity columns
// never hold empty strings. Unparseable values bind as their raw text.
func textOrNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (w *TrackWriter) upsertTrackRow(tx *sql.Tx, req SaveRequest) (int64, error) {
	bag := req.Bag
	if req.TrackID != 0 {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO tracks
				(id, track, disc, bpm, duration, filesize, year, folder_id, title, filename, filetime, sort_order1, source_id, external_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, req.TrackID,
			textOrNull(bag.First(metadata.KeyTrack)), textOrNull(bag.First(metadata.KeyDisc)), textOrNull(bag.First(metadata.KeyBpm)),
			textOrNull(bag.First(metadata.KeyDuration)), textOrNull(bag.First(metadata.KeyFilesize)), textOrNull(bag.First(metadata.KeyYear)),
			req.FolderID, bag.First(metadata.KeyTitle), bag.First(metadata.KeyFilename),
			textOrNull(bag.First(metadata.KeyFiletime)), req.SortOrder, req.SourceID, req.ExternalID)
		if err != nil {
			return 0, opErr("upsert track", ErrSchemaViolation, err)
		}
		return req.TrackID, nil
	}

	_, err := tx.Exec(`
		INSERT INTO tracks
			(track, disc, bpm, duration, filesize, year, folder_id, title, filename, filetime, sort_order1, source_id, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, textOrNull(bag.First(metadata.KeyTrack)), textOrNull(bag.First(metadata.KeyDisc)), textOrNull(bag.First(metadata.KeyBpm)),
		textOrNull(bag.First(metadata.KeyDuration)), textOrNull(bag.First(metadata.KeyFilesize)), textOrNull(bag.First(metadata.KeyYear)),
		req.FolderID, bag.First(metadata.KeyTitle), bag.First(metadata.KeyFilename),
		textOrNull(bag.First(metadata.KeyFiletime)), req.SortOrder, req.SourceID, req.ExternalID)
	if err != nil {
		return 0, opErr("insert track", ErrSchemaViolation, err)
	}
	return store.LastInsertID(tx)
}

func (w *TrackWriter) upsertAlbum(tx *sql.Tx, bag *metadata.Bag, ext string) (int64, error) {
	// Empty album names are stored as the empty string, never NULL, so
	// the uniqueness join keeps working.
	name := bag.First(metadata.KeyAlbum)
	if name == "" {
		name = w.defaults.album(ext)
	}

	var id int64
	err := tx.QueryRow(`SELECT id FROM albums WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, opErr("select album", ErrSchemaViolation, err)
	}
	res, err := tx.Exec(`INSERT INTO albums (name) VALUES (?)`, name)
	if err != nil {
		return 0, opErr("insert album", ErrSchemaViolation, err)
	}
	return res.LastInsertId()
}

type vocabTables struct {
	table    string
	junction string
	fk       string
}

var (
	vocabArtists = vocabTables{table: "artists", junction: "track_artists", fk: "artist_id"}
	vocabGenres  = vocabTables{table: "genres", junction: "track_genres", fk: "genre_id"}
)

// normalizeVocabulary applies the multi-valued field rules: dedupe
// preserving first-seen order, one vocabulary row and junction per value,
// and an aggregated row joined with ", " as the visual row when there is
// more than one value. An empty set resolves to the sentinel row.
// Returns the visual row id.
func (w *TrackWriter) normalizeVocabulary(tx *sql.Tx, tables vocabTables, trackID int64, values []string, sentinel string) (int64, error) {
	seen := make(map[string]bool, len(values))
	deduped := values[:0:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		deduped = append(deduped, v)
	}

	var visualID int64
	for _, v := range deduped {
		id, err := w.upsertVocabRow(tx, tables, v, false)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO `+tables.junction+` (track_id, `+tables.fk+`) VALUES (?, ?)`,
			trackID, id); err != nil {
			return 0, opErr("insert "+tables.junction, ErrSchemaViolation, err)
		}
		visualID = id
	}

	switch {
	case len(deduped) > 1:
		return w.upsertVocabRow(tx, tables, strings.Join(deduped, ", "), true)
	case len(deduped) == 0:
		return w.upsertVocabRow(tx, tables, sentinel, true)
	}
	return visualID, nil
}

func (w *TrackWriter) upsertVocabRow(tx *sql.Tx, tables vocabTables, name string, aggregated bool) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM `+tables.table+` WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, opErr("select "+tables.table, ErrSchemaViolation, err)
	}

	agg := 0
	if aggregated {
		agg = 1
	}
	res, err := tx.Exec(`INSERT INTO `+tables.table+` (name, aggregated) VALUES (?, ?)`, name, agg)
	if err != nil {
		return 0, opErr("insert "+tables.table, ErrSchemaViolation, err)
	}
	return res.LastInsertId()
}

// upsertThumbnail resolves the thumbnail id for the bag. Bags carrying
// raw bytes are deduplicated by (filesize, checksum); the first blob with
// a given pair wins and is never re-written. External sources may pass a
// thumbnail_id directly instead. Returns the blob bytes to persist after
// commit, nil when the blob already exists.
func (w *TrackWriter) upsertThumbnail(tx *sql.Tx, bag *metadata.Bag) (int64, []byte, error) {
	data := bag.Thumbnail()
	if data == nil {
		if ref := bag.First(metadata.KeyThumbnailID); ref != "" {
			if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
				return id, nil, nil
			}
		}
		return 0, nil, nil
	}

	checksum := thumbs.Checksum(data)
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM thumbnails WHERE filesize = ? AND checksum = ?
	`, len(data), checksum).Scan(&id)
	if err == nil {
		return id, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, nil, opErr("select thumbnail", ErrSchemaViolation, err)
	}

	res, err := tx.Exec(`INSERT INTO thumbnails (filesize, checksum) VALUES (?, ?)`, len(data), checksum)
	if err != nil {
		return 0, nil, opErr("insert thumbnail", ErrSchemaViolation, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, nil, err
	}
	return id, data, nil
}

// writeMetaOverflow upserts every tag key not consumed by the core into
// the extensible meta tables.
func (w *TrackWriter) writeMetaOverflow(tx *sql.Tx, trackID int64, bag *metadata.Bag) error {
	consumed := make(map[string]bool, len(consumedKeys))
	for _, key := range consumedKeys {
		consumed[key] = true
	}

	keys := bag.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		if consumed[key] {
			continue
		}
		for _, value := range bag.Values(key) {
			keyID, err := w.upsertMetaKey(tx, key)
			if err != nil {
				return err
			}
			valueID, err := w.upsertMetaValue(tx, keyID, value)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`
				INSERT INTO track_meta (track_id, meta_value_id) VALUES (?, ?)
			`, trackID, valueID); err != nil {
				return opErr("insert track_meta", ErrSchemaViolation, err)
			}
		}
	}
	return nil
}

func (w *TrackWriter) upsertMetaKey(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM meta_keys WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, opErr("select meta_keys", ErrSchemaViolation, err)
	}
	res, err := tx.Exec(`INSERT INTO meta_keys (name) VALUES (?)`, name)
	if err != nil {
		return 0, opErr("insert meta_keys", ErrSchemaViolation, err)
	}
	return res.LastInsertId()
}

func (w *TrackWriter) upsertMetaValue(tx *sql.Tx, keyID int64, content string) (int64, error) {
	var id int64
	err := tx.QueryRow(`
		SELECT id FROM meta_values WHERE meta_key_id = ? AND content = ?
	`, keyID, content).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, opErr("select meta_values", ErrSchemaViolation, err)
	}
	res, err := tx.Exec(`
		INSERT INTO meta_values (meta_key_id, content) VALUES (?, ?)
	`, keyID, content)
	if err != nil {
		return 0, opErr("insert meta_values", ErrSchemaViolation, err)
	}
	return res.LastInsertId()
}
