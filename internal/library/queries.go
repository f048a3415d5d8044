package library

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// Category names browsable through the query layer.
type Category string

const (
	CategoryArtist      Category = "artist"
	CategoryAlbum       Category = "album"
	CategoryGenre       Category = "genre"
	CategoryAlbumArtist Category = "album_artist"
	CategoryPlaylists   Category = "playlists"
)

// CategoryItem is one row of a category listing.
type CategoryItem struct {
	ID   int64
	Name string
}

// CategoryQuery lists a category's (id, display name) pairs. Queries are
// immutable values; Hash identifies them for same-as-last caches.
type CategoryQuery struct {
	Category Category
	Filter   string
}

// Hash returns a stable identity for the query's parameters.
func (q CategoryQuery) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "category/%s/%s", q.Category, q.Filter)
	return h.Sum64()
}

// ListCategory runs a category listing, ordered by display name with an
// id tie-break. A non-empty filter keeps names containing it.
func (l *Library) ListCategory(q CategoryQuery) ([]CategoryItem, error) {
	var sqlText string
	switch q.Category {
	case CategoryArtist:
		sqlText = `SELECT id, name FROM artists WHERE aggregated = 0`
	case CategoryGenre:
		sqlText = `SELECT id, name FROM genres WHERE aggregated = 0`
	case CategoryAlbum:
		sqlText = `SELECT id, name FROM albums WHERE 1 = 1`
	case CategoryAlbumArtist:
		sqlText = `SELECT DISTINCT ar.id, ar.name FROM artists ar
			JOIN tracks t ON t.visual_artist_id = ar.id WHERE 1 = 1`
	case CategoryPlaylists:
		sqlText = `SELECT id, name FROM playlists WHERE 1 = 1`
	default:
		return nil, opErr("list category", ErrNotFound, fmt.Errorf("unknown category %q", q.Category))
	}

	args := []any{}
	if q.Filter != "" {
		sqlText += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(q.Filter)+"%")
	}
	sqlText += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := l.store.DB().Query(sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CategoryItem
	for rows.Next() {
		var item CategoryItem
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MatchType selects how a free-text filter matches the canonical display
// string (title, visual artist, album).
type MatchType int

const (
	MatchSubstring MatchType = iota
	MatchRegex
)

// Predicate restricts a track listing to one category member.
type Predicate struct {
	Category Category
	ID       int64
}

// TrackQuery describes a track listing. Zero value lists every track in
// display order. Predicates are AND-combined. Queries are immutable
// values; Hash identifies them for same-as-last caches.
type TrackQuery struct {
	Predicates  []Predicate
	Filter      string
	Match       MatchType
	ExternalIDs []string
}

// Hash returns a stable identity for the query's parameters.
func (q TrackQuery) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "tracks/%d/%s", q.Match, q.Filter)
	for _, p := range q.Predicates {
		fmt.Fprintf(h, "/%s=%d", p.Category, p.ID)
	}
	for _, id := range q.ExternalIDs {
		fmt.Fprintf(h, "/x=%s", id)
	}
	return h.Sum64()
}

// Display order for track listings: album, disc, track, title, with the
// internal id as the deterministic tie-break.
const trackOrder = ` ORDER BY al.name COLLATE NOCASE, t.disc, t.track, t.title COLLATE NOCASE, t.id`

// TrackIDs runs a track listing and returns the ordered ids.
func (l *Library) TrackIDs(q TrackQuery) ([]int64, error) {
	sqlText := `
		SELECT t.id, t.title, ar.name, al.name
		FROM tracks t
		JOIN albums al ON t.album_id = al.id
		JOIN artists ar ON t.visual_artist_id = ar.id
	`
	var args []any
	var where []string
	orderBy := trackOrder

	for _, p := range q.Predicates {
		switch p.Category {
		case CategoryArtist:
			where = append(where, `EXISTS (SELECT 1 FROM track_artists ta WHERE ta.track_id = t.id AND ta.artist_id = ?)`)
			args = append(args, p.ID)
		case CategoryGenre:
			where = append(where, `EXISTS (SELECT 1 FROM track_genres tg WHERE tg.track_id = t.id AND tg.genre_id = ?)`)
			args = append(args, p.ID)
		case CategoryAlbum:
			where = append(where, `t.album_id = ?`)
			args = append(args, p.ID)
		case CategoryAlbumArtist:
			where = append(where, `t.visual_artist_id = ?`)
			args = append(args, p.ID)
		case CategoryPlaylists:
			where = append(where, `EXISTS (SELECT 1 FROM playlist_tracks pt WHERE pt.track_id = t.id AND pt.playlist_id = ?)`)
			args = append(args, p.ID)
			if len(q.Predicates) == 1 {
				// A bare playlist listing keeps the playlist's own order.
				orderBy = ` ORDER BY (SELECT MIN(pt.sort_order) FROM playlist_tracks pt
					WHERE pt.track_id = t.id AND pt.playlist_id = ` + fmt.Sprintf("%d", p.ID) + `), t.id`
			}
		default:
			return nil, opErr("track listing", ErrNotFound, fmt.Errorf("unknown category %q", p.Category))
		}
	}

	if len(q.ExternalIDs) > 0 {
		where = append(where, `t.external_id IN (`+placeholders(len(q.ExternalIDs))+`)`)
		for _, id := range q.ExternalIDs {
			args = append(args, id)
		}
	}

	if q.Filter != "" && q.Match == MatchSubstring {
		where = append(where, `(t.title || ' ' || ar.name || ' ' || al.name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Filter)+"%")
	}

	if len(where) > 0 {
		sqlText += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sqlText += orderBy

	rows, err := l.store.DB().Query(sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var re *regexp.Regexp
	if q.Filter != "" && q.Match == MatchRegex {
		re, err = regexp.Compile(q.Filter)
		if err != nil {
			return nil, opErr("track listing", ErrTagParse, err)
		}
	}

	var ids []int64
	for rows.Next() {
		var id int64
		var title, artist, album string
		if err := rows.Scan(&id, &title, &artist, &album); err != nil {
			return nil, err
		}
		if re != nil && !re.MatchString(title+" "+artist+" "+album) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TrackCount returns the total number of tracks in the library.
func (l *Library) TrackCount() (int, error) {
	var count int
	err := l.store.DB().QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	return count, err
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
