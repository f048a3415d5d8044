package library

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/llehouerou/cadence/internal/store"
)

// Track is a fully hydrated track row with its joined relations.
type Track struct {
	ID          int64
	Title       string
	TrackNumber string
	DiscNumber  string
	Bpm         string
	Duration    int
	Filesize    int64
	Year        int
	Filename    string
	Filetime    int64
	Path        string
	Album       string
	AlbumID     int64
	Artist      string // visual artist display form
	ArtistID    int64
	Genre       string // visual genre display form
	GenreID     int64
	ThumbnailID int64
	SourceID    int32
	ExternalID  string
	Artists     []string
	Genres      []string
	Meta        map[string][]string
}

const trackSelect = `
	SELECT t.id, t.track, t.disc, t.bpm, t.duration, t.filesize, t.year,
	       t.title, t.filename, t.filetime, t.thumbnail_id, t.source_id, t.external_id,
	       al.id, al.name, ar.id, ar.name, g.id, g.name,
	       COALESCE(p.path || f.relative_path || '/' || t.filename, '')
	FROM tracks t
	JOIN albums al ON t.album_id = al.id
	JOIN artists ar ON t.visual_artist_id = ar.id
	JOIN genres g ON t.visual_genre_id = g.id
	LEFT JOIN folders f ON t.folder_id = f.id
	LEFT JOIN paths p ON f.path_id = p.id
`

func scanTrack(scanner interface{ Scan(...any) error }) (*Track, error) {
	var t Track
	// Loosely-typed columns: readers may have stored raw text where a
	// number would not parse, so everything scans as text first.
	var trackNum, discNum, bpm, duration, filesize, year, filetime sql.NullString
	err := scanner.Scan(
		&t.ID, &trackNum, &discNum, &bpm, &duration, &filesize, &year,
		&t.Title, &t.Filename, &filetime, &t.ThumbnailID, &t.SourceID, &t.ExternalID,
		&t.AlbumID, &t.Album, &t.ArtistID, &t.Artist, &t.GenreID, &t.Genre,
		&t.Path,
	)
	if err != nil {
		return nil, err
	}
	t.TrackNumber = store.NullStringValue(trackNum)
	t.DiscNumber = store.NullStringValue(discNum)
	t.Bpm = store.NullStringValue(bpm)
	t.Duration = atoiOrZero(store.NullStringValue(duration))
	t.Filesize = int64(atoiOrZero(store.NullStringValue(filesize)))
	t.Year = atoiOrZero(store.NullStringValue(year))
	t.Filetime = int64(atoiOrZero(store.NullStringValue(filetime)))
	return &t, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// TrackByID returns the fully hydrated track, including its artist and
// genre junctions and free-form meta. Returns ErrNotFound when no row
// matches.
func (l *Library) TrackByID(id int64) (*Track, error) {
	row := l.store.DB().QueryRow(trackSelect+` WHERE t.id = ?`, id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opErr("track by id", ErrNotFound, nil)
	}
	if err != nil {
		return nil, err
	}
	if err := l.hydrateRelations(t); err != nil {
		return nil, err
	}
	return t, nil
}

// TrackByExternalID resolves a track through its (source id, external id)
// identity. Returns ErrNotFound when no row matches.
func (l *Library) TrackByExternalID(sourceID int32, externalID string) (*Track, error) {
	row := l.store.DB().QueryRow(trackSelect+` WHERE t.source_id = ? AND t.external_id = ?`, sourceID, externalID)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, opErr("track by external id", ErrNotFound, nil)
	}
	if err != nil {
		return nil, err
	}
	if err := l.hydrateRelations(t); err != nil {
		return nil, err
	}
	return t, nil
}

// TracksByIDs hydrates a batch of tracks in one query. Missing ids are
// simply absent from the result; relation and meta hydration is skipped,
// which is what track-list windows want.
func (l *Library) TracksByIDs(ids []int64) (map[int64]*Track, error) {
	result := make(map[int64]*Track, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := trackSelect + ` WHERE t.id IN (` + placeholders(len(ids)) + `)`
	rows, err := l.store.DB().Query(query, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		result[t.ID] = t
	}
	return result, rows.Err()
}

func (l *Library) hydrateRelations(t *Track) error {
	db := l.store.DB()

	rows, err := db.Query(`
		SELECT ar.name FROM artists ar, track_artists ta
		WHERE ta.artist_id = ar.id AND ta.track_id = ? ORDER BY ta.id
	`, t.ID)
	if err != nil {
		return err
	}
	t.Artists, err = collectStrings(rows)
	if err != nil {
		return err
	}

	rows, err = db.Query(`
		SELECT g.name FROM genres g, track_genres tg
		WHERE tg.genre_id = g.id AND tg.track_id = ? ORDER BY tg.id
	`, t.ID)
	if err != nil {
		return err
	}
	t.Genres, err = collectStrings(rows)
	if err != nil {
		return err
	}

	metaRows, err := db.Query(`
		SELECT mk.name, mv.content FROM meta_values mv, meta_keys mk, track_meta tm
		WHERE tm.track_id = ? AND tm.meta_value_id = mv.id AND mv.meta_key_id = mk.id
		ORDER BY tm.id
	`, t.ID)
	if err != nil {
		return err
	}
	defer metaRows.Close()
	t.Meta = make(map[string][]string)
	for metaRows.Next() {
		var name, content string
		if err := metaRows.Scan(&name, &content); err != nil {
			return err
		}
		t.Meta[name] = append(t.Meta[name], content)
	}
	return metaRows.Err()
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
