package metadata

import (
	"strings"

	"go.senan.xyz/taglib"
)

// readVorbisExtendedTags reads the full tag map of an Ogg/Opus file
// through TagLib and surfaces fields outside the common parse. Repeated
// ARTIST/GENRE values are re-emitted for the writer's multi-value
// handling.
func readVorbisExtendedTags(path string, sink Sink) {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return
	}

	if artists := rawTags[taglib.Artist]; len(artists) > 1 {
		for _, artist := range artists[1:] {
			sink.Set(KeyArtist, artist)
		}
	}
	if genres := rawTags[taglib.Genre]; len(genres) > 1 {
		for _, genre := range genres[1:] {
			sink.Set(KeyGenre, genre)
		}
	}

	tags := taglibTags(rawTags)
	if bpm := tags.get("BPM"); bpm != "" {
		sink.Set(KeyBpm, bpm)
	}

	for _, field := range []string{
		taglib.Label,
		taglib.CatalogNumber,
		taglib.Barcode,
		taglib.ISRC,
		taglib.MusicBrainzArtistID,
		taglib.MusicBrainzAlbumID,
		taglib.MusicBrainzReleaseGroupID,
		taglib.MusicBrainzTrackID,
	} {
		if value := tags.get(field); value != "" {
			sink.Set(strings.ToLower(field), value)
		}
	}
}
