package metadata

import (
	"strings"

	"github.com/bogem/id3v2/v2"
)

// TXXX descriptions surfaced into the meta bag under their lowercased name.
var mp3UserFrames = []string{
	"CATALOGNUMBER",
	"BARCODE",
	"SCRIPT",
	"MusicBrainz Artist Id",
	"MusicBrainz Album Id",
	"MusicBrainz Release Group Id",
	"MusicBrainz Release Track Id",
}

// readMP3ExtendedTags reads extended ID3v2 frames that the common parse
// does not surface.
func readMP3ExtendedTags(path string, sink Sink) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return
	}
	defer id3tag.Close()

	if bpm := getID3TextFrame(id3tag, "TBPM"); bpm != "" {
		sink.Set(KeyBpm, bpm)
	}
	if composer := getID3TextFrame(id3tag, "TCOM"); composer != "" {
		sink.Set("composer", composer)
	}
	if label := getID3TextFrame(id3tag, "TPUB"); label != "" {
		sink.Set("label", label)
	}
	if isrc := getID3TextFrame(id3tag, "TSRC"); isrc != "" {
		sink.Set("isrc", isrc)
	}

	for _, desc := range mp3UserFrames {
		if value := getID3TXXXFrame(id3tag, desc); value != "" {
			sink.Set(strings.ReplaceAll(strings.ToLower(desc), " ", "_"), value)
		}
	}
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return strings.TrimSpace(tf.Text)
	}
	return ""
}

// getID3TXXXFrame reads a user-defined text frame (TXXX) value.
func getID3TXXXFrame(id3tag *id3v2.Tag, description string) string {
	frames := id3tag.GetFrames("TXXX")
	for _, frame := range frames {
		if txxx, ok := frame.(id3v2.UserDefinedTextFrame); ok {
			if txxx.Description == description {
				return txxx.Value
			}
		}
	}
	return ""
}
