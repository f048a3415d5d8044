package library

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/llehouerou/cadence/internal/metadata"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0)
}

// fakeReader emits tags from a per-path table instead of parsing audio.
type fakeReader struct {
	tags   map[string]map[string][]string
	onRead func(path string)
	reads  int
}

func (r *fakeReader) CanRead(ext string) bool {
	return ext == "mp3"
}

func (r *fakeReader) Read(path string, sink metadata.Sink) bool {
	r.reads++
	if r.onRead != nil {
		r.onRead(path)
	}
	tags, ok := r.tags[filepath.Base(path)]
	if !ok {
		return false
	}
	for key, values := range tags {
		for _, v := range values {
			sink.Set(key, v)
		}
	}
	return true
}

func setupScanner(t *testing.T, reader *fakeReader) (*Library, string) {
	t.Helper()
	registry := metadata.NewRegistry()
	registry.Register(reader)
	lib, err := Open(t.TempDir(), Options{
		Readers: registry,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib, t.TempDir()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanFreshFile(t *testing.T) {
	reader := &fakeReader{tags: map[string]map[string][]string{
		"song.mp3": {
			"title":  {"A"},
			"artist": {"X"},
			"album":  {"Y"},
			"genre":  {"Rock"},
		},
	}}
	lib, root := setupScanner(t, reader)
	path := writeFile(t, root, "song.mp3", "audio bytes")

	ix := lib.NewIndexer()
	result, err := ix.Scan([]string{root}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result != ScanCommit {
		t.Fatalf("result = %v", result)
	}

	ids, err := lib.TrackIDs(TrackQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 track, got %d", len(ids))
	}

	track, err := lib.TrackByID(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if track.Filesize != info.Size() {
		t.Errorf("filesize = %d, expected %d", track.Filesize, info.Size())
	}
	if track.Filetime != info.ModTime().Unix() {
		t.Errorf("filetime = %d, expected %d", track.Filetime, info.ModTime().Unix())
	}
	if track.Title != "A" || track.Artist != "X" {
		t.Errorf("track = %+v", track)
	}
}

func TestScanIdempotent(t *testing.T) {
	reader := &fakeReader{tags: map[string]map[string][]string{
		"song.mp3": {"title": {"A"}, "artist": {"X"}},
	}}
	lib, root := setupScanner(t, reader)
	writeFile(t, root, "song.mp3", "audio bytes")

	ix := lib.NewIndexer()
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}
	firstReads := reader.reads
	_, firstCommitted := ix.Counters()
	if firstCommitted != 1 {
		t.Fatalf("first scan committed %d tracks", firstCommitted)
	}

	// Unchanged file: the (filesize, filetime) fast path skips the
	// reader and the writer entirely.
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}
	if reader.reads != firstReads {
		t.Errorf("reader invoked on unchanged file (%d -> %d reads)", firstReads, reader.reads)
	}
	if _, committed := ix.Counters(); committed != 0 {
		t.Errorf("second scan committed %d tracks, expected 0", committed)
	}
	if n := countRows(t, lib, "tracks"); n != 1 {
		t.Errorf("tracks = %d", n)
	}
}

func TestScanDetectsMtimeChange(t *testing.T) {
	reader := &fakeReader{tags: map[string]map[string][]string{
		"song.mp3": {"title": {"A"}, "artist": {"X"}},
	}}
	lib, root := setupScanner(t, reader)
	path := writeFile(t, root, "song.mp3", "audio bytes")

	ix := lib.NewIndexer()
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}
	ids, _ := lib.TrackIDs(TrackQuery{})
	before, err := lib.TrackByID(ids[0])
	if err != nil {
		t.Fatal(err)
	}

	newTime := before.Filetime + 100
	if err := os.Chtimes(path, timeFromUnix(newTime), timeFromUnix(newTime)); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}

	if n := countRows(t, lib, "tracks"); n != 1 {
		t.Fatalf("expected update in place, got %d rows", n)
	}
	after, err := lib.TrackByID(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if after.Filetime != newTime {
		t.Errorf("filetime = %d, expected %d", after.Filetime, newTime)
	}
}

func TestScanRemovesDeletedFiles(t *testing.T) {
	reader := &fakeReader{tags: map[string]map[string][]string{
		"a.mp3": {"title": {"A"}, "artist": {"X"}},
		"b.mp3": {"title": {"B"}, "artist": {"X"}},
	}}
	lib, root := setupScanner(t, reader)
	writeFile(t, root, "a.mp3", "audio")
	pathB := writeFile(t, root, "b.mp3", "audio")

	ix := lib.NewIndexer()
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, lib, "tracks"); n != 2 {
		t.Fatalf("tracks = %d", n)
	}

	if err := os.Remove(pathB); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Scan([]string{root}, nil); err != nil {
		t.Fatal(err)
	}

	if n := countRows(t, lib, "tracks"); n != 1 {
		t.Errorf("tracks after GC = %d, expected 1", n)
	}
	if n := countRows(t, lib, "track_artists"); n != 1 {
		t.Errorf("track_artists after GC = %d, expected 1", n)
	}
}

func TestScanUnreadableFileSkipped(t *testing.T) {
	reader := &fakeReader{tags: map[string]map[string][]string{
		"good.mp3": {"title": {"A"}, "artist": {"X"}},
		// bad.mp3 missing from the table: reader returns false.
	}}
	lib, root := setupScanner(t, reader)
	writeFile(t, root, "good.mp3", "audio")
	writeFile(t, root, "bad.mp3", "garbage")

	ix := lib.NewIndexer()
	result, err := ix.Scan([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result != ScanCommit {
		t.Fatalf("one bad file must not fail the scan: %v", result)
	}
	if n := countRows(t, lib, "tracks"); n != 1 {
		t.Errorf("tracks = %d, expected 1", n)
	}
	invalid := ix.InvalidFiles()
	if len(invalid) != 1 || filepath.Base(invalid[0]) != "bad.mp3" {
		t.Errorf("invalid files = %v", invalid)
	}
}

func TestScanInterrupt(t *testing.T) {
	tags := make(map[string]map[string][]string, 100)
	for i := 0; i < 100; i++ {
		name := "song" + strconv.Itoa(i) + ".mp3"
		tags[name] = map[string][]string{"title": {name}, "artist": {"X"}}
	}
	reader := &fakeReader{tags: tags}
	lib, root := setupScanner(t, reader)
	for name := range tags {
		writeFile(t, root, name, "audio")
	}

	ix := lib.NewIndexer()
	reader.onRead = func(string) {
		if reader.reads == 30 {
			ix.Interrupt()
		}
	}

	result, err := ix.Scan([]string{root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result != ScanCommit {
		t.Fatalf("interrupted scan still reports commit for finished files: %v", result)
	}

	n := countRows(t, lib, "tracks")
	if n == 0 || n > 31 {
		t.Errorf("tracks after interrupt = %d, expected ≈30", n)
	}
	// Every committed track is fully normalized.
	var dangling int
	err = lib.Store().DB().QueryRow(`
		SELECT COUNT(*) FROM tracks t
		WHERE t.album_id NOT IN (SELECT id FROM albums)
		   OR t.visual_artist_id NOT IN (SELECT id FROM artists)
		   OR t.visual_genre_id NOT IN (SELECT id FROM genres)
	`).Scan(&dangling)
	if err != nil {
		t.Fatal(err)
	}
	if dangling != 0 {
		t.Errorf("%d committed tracks with dangling relations", dangling)
	}
	if ix.State() != Idle {
		t.Errorf("state = %v, expected Idle", ix.State())
	}
}

func TestScanProgressTicks(t *testing.T) {
	tags := make(map[string]map[string][]string, 25)
	for i := 0; i < 25; i++ {
		name := "song" + strconv.Itoa(i) + ".mp3"
		tags[name] = map[string][]string{"title": {name}, "artist": {"X"}}
	}
	reader := &fakeReader{tags: tags}
	lib, root := setupScanner(t, reader)
	for name := range tags {
		writeFile(t, root, name, "audio")
	}

	ix := lib.NewIndexer()
	ix.ProgressBatch = 10

	progress := make(chan Progress)
	collected := make(chan []Progress)
	go func() {
		var events []Progress
		for p := range progress {
			events = append(events, p)
		}
		collected <- events
	}()

	if _, err := ix.Scan([]string{root}, progress); err != nil {
		t.Fatal(err)
	}
	events := <-collected

	if len(events) < 3 {
		t.Fatalf("expected ticks at 10, 20 and a final event, got %d", len(events))
	}
	last := events[len(events)-1]
	if !last.Done || last.Result != ScanCommit {
		t.Errorf("final event = %+v", last)
	}
	if last.FilesIndexed != 25 || last.TracksCommitted != 25 {
		t.Errorf("final counters = %d/%d", last.FilesIndexed, last.TracksCommitted)
	}
	// Counters are monotonic.
	prev := 0
	for _, e := range events {
		if e.FilesIndexed < prev {
			t.Errorf("non-monotonic progress: %+v", events)
		}
		prev = e.FilesIndexed
	}
}
