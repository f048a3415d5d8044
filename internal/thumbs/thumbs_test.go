package thumbs

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"
)

func TestChecksumStable(t *testing.T) {
	data := []byte("some thumbnail bytes")
	if Checksum(data) != Checksum(data) {
		t.Error("checksum must be deterministic")
	}
	if Checksum(data) == Checksum([]byte("other bytes")) {
		t.Error("different bytes should differ")
	}
}

func TestWriteAndRemove(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write(1, []byte("raw bytes, not an image")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !s.Exists(1) {
		t.Fatal("blob should exist")
	}

	data, err := os.ReadFile(s.PathFor(1))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("raw bytes, not an image")) {
		t.Error("non-image bytes must be written as-is")
	}

	if err := s.Remove(1); err != nil {
		t.Fatal(err)
	}
	if s.Exists(1) {
		t.Error("blob should be gone")
	}
	// Removing again is not an error.
	if err := s.Remove(1); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestWriteDownscalesLargeArt(t *testing.T) {
	s := NewStore(t.TempDir())

	big := image.NewRGBA(image.Rect(0, 0, 1200, 800))
	for x := 0; x < 1200; x += 10 {
		for y := 0; y < 800; y += 10 {
			big.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, big, nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Write(2, buf.Bytes()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(s.PathFor(2))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width > maxEdge || cfg.Height > maxEdge {
		t.Errorf("stored art is %dx%d, expected at most %d on each edge", cfg.Width, cfg.Height, maxEdge)
	}
}

func TestNoPartialFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	if err := s.Write(3, []byte("bytes")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "3.jpg" {
		t.Errorf("unexpected files: %v", entries)
	}
}
