package metadata

import "testing"

func TestTaglibTagsHelpers(t *testing.T) {
	tags := taglibTags{
		"TITLE":       {"A Song"},
		"ARTIST":      {"X", "Y"},
		"TRACKNUMBER": {"3/12"},
		"DISCNUMBER":  {"2"},
		"TOTALTRACKS": {"12"},
		"BAD":         {"not a number"},
	}

	if got := tags.get("TITLE"); got != "A Song" {
		t.Errorf("get = %q", got)
	}
	if got := tags.get("MISSING", "TITLE"); got != "A Song" {
		t.Errorf("get fallback = %q", got)
	}
	if got := tags.get("MISSING"); got != "" {
		t.Errorf("get missing = %q", got)
	}
	if got := tags.all("ARTIST"); len(got) != 2 {
		t.Errorf("all = %v", got)
	}
	if got := tags.getInt("TOTALTRACKS"); got != 12 {
		t.Errorf("getInt = %d", got)
	}
	if got := tags.getInt("BAD"); got != 0 {
		t.Errorf("getInt on junk = %d", got)
	}

	num, total := tags.parseNumberPair("TRACKNUMBER")
	if num != 3 || total != 12 {
		t.Errorf("parseNumberPair = %d/%d", num, total)
	}
	num, total = tags.parseNumberPair("DISCNUMBER")
	if num != 2 || total != 0 {
		t.Errorf("parseNumberPair plain = %d/%d", num, total)
	}
	num, total = tags.parseNumberPair("MISSING")
	if num != 0 || total != 0 {
		t.Errorf("parseNumberPair missing = %d/%d", num, total)
	}
}

func TestEmitVorbisComments(t *testing.T) {
	bag := NewBag()
	// The common parse already emitted the first ARTIST value.
	bag.Set(KeyArtist, "X")

	emitVorbisComments([]string{
		"ARTIST=X",
		"ARTIST=Y",
		"GENRE=Rock",
		"BPM=120",
		"LABEL=Warp",
		"TITLE=ignored, the common parse owns it",
		"MALFORMED",
		"=empty name",
	}, bag)

	if got := bag.Values(KeyArtist); len(got) != 2 || got[1] != "Y" {
		t.Errorf("artists = %v", got)
	}
	// A single GENRE comment adds nothing; the common parse covered it.
	if bag.Has(KeyGenre) {
		t.Errorf("genre = %v", bag.Values(KeyGenre))
	}
	if bag.First(KeyBpm) != "120" {
		t.Errorf("bpm = %q", bag.First(KeyBpm))
	}
	if bag.First("label") != "Warp" {
		t.Errorf("label = %q", bag.First("label"))
	}
	if bag.Has("title") {
		t.Error("common fields must not be re-emitted")
	}
}

func TestFileReaderCanRead(t *testing.T) {
	r := NewFileReader()
	for _, ext := range []string{"mp3", "flac", "ogg", "opus", "m4a"} {
		if !r.CanRead(ext) {
			t.Errorf("CanRead(%q) = false", ext)
		}
	}
	if r.CanRead("txt") {
		t.Error("CanRead(txt) = true")
	}
}
