// Package metadata provides the tag reader registry and the tag bag, the
// flat multi-valued key/value structure a reader produces for one file.
package metadata

import "strings"

// Well-known tag keys. Readers emit these; the track writer consumes most
// of them into typed track columns or vocabulary tables. album_artist,
// comment, totaltracks and totaldiscs are not consumed: like any other
// key, they land in the extensible meta tables.
const (
	KeyTitle       = "title"
	KeyAlbum       = "album"
	KeyArtist      = "artist"
	KeyAlbumArtist = "album_artist"
	KeyGenre       = "genre"
	KeyComment     = "comment"
	KeyTrack       = "track"
	KeyDisc        = "disc"
	KeyYear        = "year"
	KeyBpm         = "bpm"
	KeyDuration    = "duration"
	KeyFilesize    = "filesize"
	KeyFiletime    = "filetime"
	KeyFilename    = "filename"
	KeyPath        = "path"
	KeyExtension   = "extension"
	KeyThumbnailID = "thumbnail_id"
	KeyTotalTracks = "totaltracks"
	KeyTotalDiscs  = "totaldiscs"
)

// Sink accepts tag values emitted by a reader. Readers never touch the
// database; they only emit into the sink handed to them by the indexer.
type Sink interface {
	Set(key, value string)
	SetThumbnail(data []byte)
}

// Bag is an ordered multimap of tag key/value pairs plus optional thumbnail
// bytes. Keys are lowercase ASCII; multi-valued keys keep insertion order.
// A bag is owned by a single goroutine and is not safe for concurrent use.
type Bag struct {
	order     []string
	values    map[string][]string
	thumbnail []byte
}

// NewBag returns an empty bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string][]string)}
}

// Set appends value under key. Keys are lowercased.
func (b *Bag) Set(key, value string) {
	key = strings.ToLower(key)
	if _, ok := b.values[key]; !ok {
		b.order = append(b.order, key)
	}
	b.values[key] = append(b.values[key], value)
}

// SetThumbnail records thumbnail bytes for the file.
func (b *Bag) SetThumbnail(data []byte) {
	b.thumbnail = data
}

// Thumbnail returns the recorded thumbnail bytes, or nil.
func (b *Bag) Thumbnail() []byte {
	return b.thumbnail
}

// Values returns all values recorded for key, in insertion order.
func (b *Bag) Values(key string) []string {
	return b.values[strings.ToLower(key)]
}

// First returns the first value recorded for key, or "".
func (b *Bag) First(key string) string {
	if v := b.values[strings.ToLower(key)]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether key has at least one value.
func (b *Bag) Has(key string) bool {
	return len(b.values[strings.ToLower(key)]) > 0
}

// Delete removes all values for key.
func (b *Bag) Delete(key string) {
	key = strings.ToLower(key)
	if _, ok := b.values[key]; !ok {
		return
	}
	delete(b.values, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in first-seen order.
func (b *Bag) Keys() []string {
	keys := make([]string, len(b.order))
	copy(keys, b.order)
	return keys
}

// Len returns the number of distinct keys.
func (b *Bag) Len() int {
	return len(b.order)
}

var _ Sink = (*Bag)(nil)
