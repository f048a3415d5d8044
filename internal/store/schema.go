package store

import "database/sql"

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS paths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS folders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			relative_path TEXT NOT NULL,
			path_id INTEGER NOT NULL REFERENCES paths(id) ON DELETE CASCADE,
			UNIQUE(path_id, relative_path)
		);

		CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track INTEGER DEFAULT 0,
			disc INTEGER DEFAULT 0,
			bpm REAL DEFAULT 0,
			duration INTEGER DEFAULT 0,
			filesize INTEGER DEFAULT 0,
			year INTEGER DEFAULT 0,
			folder_id INTEGER DEFAULT 0,
			title TEXT DEFAULT '',
			filename TEXT DEFAULT '',
			filetime INTEGER DEFAULT 0,
			sort_order1 INTEGER DEFAULT 0,
			album_id INTEGER DEFAULT 0,
			visual_genre_id INTEGER DEFAULT 0,
			visual_artist_id INTEGER DEFAULT 0,
			thumbnail_id INTEGER DEFAULT 0,
			source_id INTEGER DEFAULT 0,
			external_id TEXT DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_folder_filename ON tracks(folder_id, filename);
		CREATE INDEX IF NOT EXISTS idx_tracks_external ON tracks(source_id, external_id);
		CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album_id);

		CREATE TABLE IF NOT EXISTS albums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			aggregated INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS genres (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			aggregated INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS track_artists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			artist_id INTEGER NOT NULL,
			UNIQUE(track_id, artist_id)
		);

		CREATE TABLE IF NOT EXISTS track_genres (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			genre_id INTEGER NOT NULL,
			UNIQUE(track_id, genre_id)
		);

		CREATE INDEX IF NOT EXISTS idx_track_artists_track ON track_artists(track_id);
		CREATE INDEX IF NOT EXISTS idx_track_genres_track ON track_genres(track_id);

		CREATE TABLE IF NOT EXISTS meta_keys (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS meta_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			meta_key_id INTEGER NOT NULL REFERENCES meta_keys(id),
			content TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_meta_values_key ON meta_values(meta_key_id, content);

		CREATE TABLE IF NOT EXISTS track_meta (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			meta_value_id INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_track_meta_track ON track_meta(track_id);

		CREATE TABLE IF NOT EXISTS thumbnails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filesize INTEGER NOT NULL,
			checksum INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_thumbnails_dedupe ON thumbnails(filesize, checksum);

		CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playlist_tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL,
			sort_order INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_tracks ON playlist_tracks(playlist_id, sort_order);

		CREATE TABLE IF NOT EXISTS play_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			track_id INTEGER NOT NULL,
			sort_order INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
