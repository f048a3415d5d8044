package library

import (
	"testing"

	"github.com/llehouerou/cadence/internal/metadata"
)

// containerSource simulates a scanner for multi-track container files:
// each scan reports a fixed set of subtracks with stable external ids.
type containerSource struct {
	folderID    int64
	subtracks   map[int]string // index -> title
	path        string
	beforeCalls int
	afterCalls  int
	interrupted bool
}

func (s *containerSource) SourceID() int32      { return 42 }
func (s *containerSource) NeedsTrackScan() bool { return false }
func (s *containerSource) HasStableIds() bool   { return true }
func (s *containerSource) OnBeforeScan()        { s.beforeCalls++ }
func (s *containerSource) OnAfterScan()         { s.afterCalls++ }
func (s *containerSource) Interrupt()           { s.interrupted = true }

func (s *containerSource) Scan(writer *TrackWriter, paths []string, interrupted func() bool) ScanResult {
	for n, title := range s.subtracks {
		if interrupted() {
			break
		}
		bag := metadata.NewBag()
		bag.Set(metadata.KeyTitle, title)
		bag.Set(metadata.KeyArtist, "Container Artist")
		bag.Set(metadata.KeyFilename, "album.cue")
		if _, err := writer.Save(SaveRequest{
			Bag:        bag,
			FolderID:   s.folderID,
			SourceID:   s.SourceID(),
			ExternalID: CreateExternalID("cue", s.path, n),
		}); err != nil {
			return ScanRollback
		}
	}
	return ScanCommit
}

func (s *containerSource) ScanTrack(writer *TrackWriter, sink metadata.Sink, externalID string) {
	_, n, ok := ParseExternalID("cue", externalID)
	if !ok {
		return
	}
	if title, exists := s.subtracks[n]; exists {
		sink.Set(metadata.KeyTitle, title)
	}
}

func TestExternalSourceScan(t *testing.T) {
	lib := setupLibrary(t)
	folderID := testFolder(t, lib)

	src := &containerSource{
		folderID:  folderID,
		path:      "/music/album.cue",
		subtracks: map[int]string{1: "Part One", 2: "Part Two"},
	}

	ix := lib.NewIndexer(src)
	result, err := ix.Scan([]string{t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result != ScanCommit {
		t.Fatalf("result = %v", result)
	}
	if src.beforeCalls != 1 || src.afterCalls != 1 {
		t.Errorf("lifecycle calls = %d/%d", src.beforeCalls, src.afterCalls)
	}

	ids, err := lib.TrackIDs(TrackQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("tracks = %v", ids)
	}

	track, err := lib.TrackByExternalID(42, CreateExternalID("cue", "/music/album.cue", 1))
	if err != nil {
		t.Fatal(err)
	}
	if track.Title != "Part One" {
		t.Errorf("title = %q", track.Title)
	}
}

func TestSyncExternalIDsRemovesAbsent(t *testing.T) {
	lib := setupLibrary(t)
	folderID := testFolder(t, lib)

	src := &containerSource{
		folderID:  folderID,
		path:      "/music/album.cue",
		subtracks: map[int]string{1: "Part One", 2: "Part Two", 3: "Part Three"},
	}
	ix := lib.NewIndexer(src)
	if _, err := ix.Scan([]string{t.TempDir()}, nil); err != nil {
		t.Fatal(err)
	}

	// The container shrank to two subtracks.
	present := []string{
		CreateExternalID("cue", "/music/album.cue", 1),
		CreateExternalID("cue", "/music/album.cue", 3),
	}
	if err := lib.SyncExternalIDs(42, present); err != nil {
		t.Fatalf("SyncExternalIDs failed: %v", err)
	}

	ids, err := lib.TrackIDs(TrackQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Errorf("tracks after sync = %v", ids)
	}
	if _, err := lib.TrackByExternalID(42, CreateExternalID("cue", "/music/album.cue", 2)); err == nil {
		t.Error("removed subtrack still resolvable")
	}
}

func TestInterruptPropagatesToSources(t *testing.T) {
	lib := setupLibrary(t)
	src := &containerSource{}
	ix := lib.NewIndexer(src)

	ix.Interrupt()
	if !src.interrupted {
		t.Error("Interrupt must reach registered sources")
	}
}
