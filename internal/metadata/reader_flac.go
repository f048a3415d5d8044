package metadata

import (
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// Vorbis comment names already covered by the common parse; everything
// else goes into the bag under its lowercased name.
var vorbisCommonFields = map[string]bool{
	"TITLE":       true,
	"ALBUM":       true,
	"ARTIST":      true,
	"ALBUMARTIST": true,
	"GENRE":       true,
	"TRACKNUMBER": true,
	"TOTALTRACKS": true,
	"DISCNUMBER":  true,
	"TOTALDISCS":  true,
	"DATE":        true,
	"YEAR":        true,
	"COMMENT":     true,
}

// readFLACExtendedTags reads Vorbis comments and the embedded picture from
// a FLAC file. Multi-valued ARTIST/GENRE comments are re-emitted so the
// writer sees every value, not just the first.
func readFLACExtendedTags(path string, sink Sink) {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return
	}

	for _, meta := range f.Meta {
		switch meta.Type {
		case goflac.VorbisComment:
			cmts, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				continue
			}
			emitVorbisComments(cmts.Comments, sink)
		case goflac.Picture:
			pic, err := flacpicture.ParseFromMetaDataBlock(*meta)
			if err != nil {
				continue
			}
			if len(pic.ImageData) > 0 {
				sink.SetThumbnail(pic.ImageData)
			}
		}
	}
}

// emitVorbisComments walks raw "KEY=value" comments in file order.
// Repeated ARTIST and GENRE comments become additional bag values; fields
// outside the common surface are emitted under their lowercased name.
func emitVorbisComments(comments []string, sink Sink) {
	artists := 0
	genres := 0
	for _, comment := range comments {
		eq := strings.Index(comment, "=")
		if eq <= 0 {
			continue
		}
		name := strings.ToUpper(comment[:eq])
		value := comment[eq+1:]
		if value == "" {
			continue
		}
		switch name {
		case "ARTIST":
			// The first value was already emitted by the common parse.
			if artists++; artists > 1 {
				sink.Set(KeyArtist, value)
			}
		case "GENRE":
			if genres++; genres > 1 {
				sink.Set(KeyGenre, value)
			}
		case "BPM":
			sink.Set(KeyBpm, value)
		default:
			if !vorbisCommonFields[name] {
				sink.Set(strings.ToLower(name), value)
			}
		}
	}
}
