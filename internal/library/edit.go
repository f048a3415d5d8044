package library

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/llehouerou/cadence/internal/metadata"
)

func itoaNonZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func i64toaNonZero(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// EditTrack re-runs the writer for one existing track with edited tag
// values. Keys absent from edits keep their current value; the file on
// disk is not touched. The edit is one transaction, like a scan write.
func (l *Library) EditTrack(id int64, edits map[string][]string) error {
	track, err := l.TrackByID(id)
	if err != nil {
		return err
	}

	var folderID int64
	var sortOrder int
	err = l.store.DB().QueryRow(`
		SELECT folder_id, sort_order1 FROM tracks WHERE id = ?
	`, id).Scan(&folderID, &sortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return opErr("edit track", ErrNotFound, nil)
	}
	if err != nil {
		return err
	}

	bag := metadata.NewBag()
	set := func(key string, values ...string) {
		if edited, ok := edits[key]; ok {
			values = edited
		}
		for _, v := range values {
			if v != "" {
				bag.Set(key, v)
			}
		}
	}

	set(metadata.KeyTitle, track.Title)
	set(metadata.KeyAlbum, track.Album)
	set(metadata.KeyArtist, track.Artists...)
	set(metadata.KeyGenre, track.Genres...)
	set(metadata.KeyTrack, track.TrackNumber)
	set(metadata.KeyDisc, track.DiscNumber)
	set(metadata.KeyBpm, track.Bpm)
	set(metadata.KeyDuration, itoaNonZero(track.Duration))
	set(metadata.KeyYear, itoaNonZero(track.Year))
	set(metadata.KeyFilename, track.Filename)
	set(metadata.KeyFilesize, i64toaNonZero(track.Filesize))
	set(metadata.KeyFiletime, i64toaNonZero(track.Filetime))
	set(metadata.KeyThumbnailID, i64toaNonZero(track.ThumbnailID))
	for key, values := range track.Meta {
		set(key, values...)
	}
	// Edited keys the track never had before.
	for key, values := range edits {
		if !bag.Has(key) {
			for _, v := range values {
				if v != "" {
					bag.Set(key, v)
				}
			}
		}
	}

	_, err = l.Writer().Save(SaveRequest{
		Bag:        bag,
		FolderID:   folderID,
		SourceID:   track.SourceID,
		TrackID:    id,
		ExternalID: track.ExternalID,
		SortOrder:  sortOrder,
	})
	return err
}
