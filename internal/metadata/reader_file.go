package metadata

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// Extensions the built-in file reader understands.
var fileExtensions = map[string]bool{
	"mp3":  true,
	"flac": true,
	"ogg":  true,
	"oga":  true,
	"opus": true,
	"m4a":  true,
	"mp4":  true,
}

// FileReader is the built-in reader for audio files on disk. It parses the
// common tag surface with dhowden/tag, falls back to TagLib when that
// fails, and enriches the bag with format-specific extended tags.
type FileReader struct{}

// NewFileReader returns the built-in file reader.
func NewFileReader() *FileReader {
	return &FileReader{}
}

func (r *FileReader) CanRead(ext string) bool {
	return fileExtensions[ext]
}

func (r *FileReader) Read(path string, sink Sink) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	ok := readCommonTags(path, sink)
	if !ok {
		// dhowden/tag has trouble with some files (UTF-16 ID3 frames,
		// ffmpeg-created M4As); TagLib handles those.
		ok = readTaglibTags(path, sink)
	}
	if !ok {
		return false
	}

	switch ext {
	case "mp3":
		readMP3ExtendedTags(path, sink)
	case "flac":
		readFLACExtendedTags(path, sink)
	case "ogg", "oga", "opus":
		readVorbisExtendedTags(path, sink)
	case "m4a", "mp4":
		readM4AExtendedTags(path, sink)
	}

	readDuration(path, sink)
	return true
}

// readCommonTags parses the common tag surface with dhowden/tag.
func readCommonTags(path string, sink Sink) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return false
	}

	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}
	sink.Set(KeyTitle, title)

	setIfPresent(sink, KeyAlbum, m.Album())
	setIfPresent(sink, KeyArtist, m.Artist())

	albumArtist := m.AlbumArtist()
	if albumArtist == "" {
		albumArtist = m.Artist()
	}
	setIfPresent(sink, KeyAlbumArtist, albumArtist)
	setIfPresent(sink, KeyGenre, m.Genre())
	setIfPresent(sink, KeyComment, m.Comment())

	track, totalTracks := m.Track()
	if track > 0 {
		sink.Set(KeyTrack, strconv.Itoa(track))
	}
	if totalTracks > 0 {
		sink.Set(KeyTotalTracks, strconv.Itoa(totalTracks))
	}
	disc, totalDiscs := m.Disc()
	if disc > 0 {
		sink.Set(KeyDisc, strconv.Itoa(disc))
	}
	if totalDiscs > 0 {
		sink.Set(KeyTotalDiscs, strconv.Itoa(totalDiscs))
	}
	if year := m.Year(); year > 0 {
		sink.Set(KeyYear, strconv.Itoa(year))
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		sink.SetThumbnail(pic.Data)
	}
	return true
}

// readTaglibTags parses the common tag surface with TagLib.
func readTaglibTags(path string, sink Sink) bool {
	rawTags, err := taglib.ReadTags(path)
	if err != nil {
		return false
	}
	tags := taglibTags(rawTags)

	title := tags.get(taglib.Title)
	if title == "" {
		title = filepath.Base(path)
	}
	sink.Set(KeyTitle, title)

	setIfPresent(sink, KeyAlbum, tags.get(taglib.Album))
	for _, artist := range tags.all(taglib.Artist) {
		sink.Set(KeyArtist, artist)
	}

	albumArtist := tags.get(taglib.AlbumArtist)
	if albumArtist == "" {
		albumArtist = tags.get(taglib.Artist)
	}
	setIfPresent(sink, KeyAlbumArtist, albumArtist)

	for _, genre := range tags.all(taglib.Genre) {
		sink.Set(KeyGenre, genre)
	}

	track, totalTracks := tags.parseNumberPair(taglib.TrackNumber)
	if track > 0 {
		sink.Set(KeyTrack, strconv.Itoa(track))
	}
	if totalTracks == 0 {
		totalTracks = tags.getInt("TOTALTRACKS")
	}
	if totalTracks > 0 {
		sink.Set(KeyTotalTracks, strconv.Itoa(totalTracks))
	}
	disc, totalDiscs := tags.parseNumberPair(taglib.DiscNumber)
	if disc > 0 {
		sink.Set(KeyDisc, strconv.Itoa(disc))
	}
	if totalDiscs == 0 {
		totalDiscs = tags.getInt("TOTALDISCS")
	}
	if totalDiscs > 0 {
		sink.Set(KeyTotalDiscs, strconv.Itoa(totalDiscs))
	}

	if date := tags.get(taglib.Date); len(date) >= 4 {
		sink.Set(KeyYear, date[:4])
	}
	return true
}

// readDuration reads stream properties through TagLib and records the
// duration in whole seconds.
func readDuration(path string, sink Sink) {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return
	}
	if secs := int(props.Length.Seconds()); secs > 0 {
		sink.Set(KeyDuration, strconv.Itoa(secs))
	}
}

func setIfPresent(sink Sink, key, value string) {
	if value != "" {
		sink.Set(key, value)
	}
}

// taglibTags wraps a TagLib result map with helper methods.
type taglibTags map[string][]string

// get returns the first value for any of the given keys, or empty string.
func (t taglibTags) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// all returns every value for key.
func (t taglibTags) all(key string) []string {
	return t[key]
}

// getInt returns the first value as an integer, or 0.
func (t taglibTags) getInt(key string) int {
	if values, ok := t[key]; ok && len(values) > 0 {
		if n, err := strconv.Atoi(values[0]); err == nil {
			return n
		}
	}
	return 0
}

// parseNumberPair parses a track/disc number that may be "N" or "N/M" format.
func (t taglibTags) parseNumberPair(key string) (num, total int) {
	s := t.get(key)
	if s == "" {
		return 0, 0
	}
	if idx := strings.Index(s, "/"); idx > 0 {
		num, _ = strconv.Atoi(s[:idx])
		total, _ = strconv.Atoi(s[idx+1:])
		return num, total
	}
	num, _ = strconv.Atoi(s)
	return num, 0
}
