package library

import "database/sql"

// VacuumVocabulary removes vocabulary rows no track references any more:
// albums, artists and genres (including stale aggregate rows left behind
// when a track's multi-value set changed), meta values and keys, and
// thumbnail rows whose last referent is gone. Scans never do this
// implicitly; it is an explicit maintenance pass.
func (l *Library) VacuumVocabulary() error {
	var orphanThumbs []int64

	err := l.store.WithTx(func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM albums WHERE id NOT IN (SELECT DISTINCT album_id FROM tracks)`,
			`DELETE FROM artists WHERE id NOT IN (SELECT artist_id FROM track_artists)
				AND id NOT IN (SELECT DISTINCT visual_artist_id FROM tracks)`,
			`DELETE FROM genres WHERE id NOT IN (SELECT genre_id FROM track_genres)
				AND id NOT IN (SELECT DISTINCT visual_genre_id FROM tracks)`,
			`DELETE FROM meta_values WHERE id NOT IN (SELECT meta_value_id FROM track_meta)`,
			`DELETE FROM meta_keys WHERE id NOT IN (SELECT DISTINCT meta_key_id FROM meta_values)`,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}

		rows, err := tx.Query(`
			SELECT id FROM thumbnails WHERE id NOT IN (SELECT DISTINCT thumbnail_id FROM tracks)
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			orphanThumbs = append(orphanThumbs, id)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range orphanThumbs {
			if _, err := tx.Exec(`DELETE FROM thumbnails WHERE id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range orphanThumbs {
		_ = l.thumbs.Remove(id)
	}
	return nil
}
