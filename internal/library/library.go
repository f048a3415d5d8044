// Package library implements the music library engine: the track writer
// that normalizes tag bags into the relational schema, the indexer that
// drives scans, and the query surface over the resulting tables.
package library

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/llehouerou/cadence/internal/metadata"
	"github.com/llehouerou/cadence/internal/store"
	"github.com/llehouerou/cadence/internal/thumbs"
)

// SourceIDFilesystem identifies tracks contributed by the built-in
// filesystem scan.
const SourceIDFilesystem = 0

// Defaults are substituted when readers emit empty album/artist values.
// A "%s" in either is replaced with the file extension.
type Defaults struct {
	AlbumName  string
	ArtistName string
}

func (d Defaults) album(ext string) string {
	return strings.ReplaceAll(d.AlbumName, "%s", ext)
}

func (d Defaults) artist(ext string) string {
	return strings.ReplaceAll(d.ArtistName, "%s", ext)
}

// Library owns a library directory: the database, the thumbnail blobs and
// the reader registry used by scans.
type Library struct {
	dir      string
	store    *store.Store
	thumbs   *thumbs.Store
	readers  *metadata.Registry
	defaults Defaults
	log      *slog.Logger
}

// Options configures Open.
type Options struct {
	Readers  *metadata.Registry
	Defaults Defaults
	Logger   *slog.Logger
}

// Open opens (creating if necessary) the library rooted at dir.
func Open(dir string, opts Options) (*Library, error) {
	st, err := store.Open(filepath.Join(dir, store.DBFileName))
	if err != nil {
		return nil, err
	}
	if opts.Readers == nil {
		opts.Readers = metadata.DefaultRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Library{
		dir:      dir,
		store:    st,
		thumbs:   thumbs.NewStore(dir),
		readers:  opts.Readers,
		defaults: opts.Defaults,
		log:      opts.Logger,
	}, nil
}

// Close closes the underlying store.
func (l *Library) Close() error {
	return l.store.Close()
}

// Store exposes the underlying store for collaborating packages
// (playlists, play queue, track lists).
func (l *Library) Store() *store.Store {
	return l.store
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// Readers returns the reader registry scans select from.
func (l *Library) Readers() *metadata.Registry {
	return l.readers
}

// Writer returns a track writer bound to this library.
func (l *Library) Writer() *TrackWriter {
	return &TrackWriter{
		store:    l.store,
		thumbs:   l.thumbs,
		defaults: l.defaults,
		log:      l.log,
	}
}
