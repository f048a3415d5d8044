// Package thumbs persists deduplicated thumbnail blobs under
// <libraryDir>/thumbs. Blobs are keyed by the id of their row in the
// thumbnails table; deduplication by (filesize, checksum) happens in the
// track writer before a blob is ever written.
package thumbs

import (
	"bytes"
	"fmt"
	"hash/crc64"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	_ "image/gif" // register decoders for embedded art
	_ "image/png"
)

// Art larger than this on its longest edge is downscaled before it is
// persisted.
const maxEdge = 500

var crcTable = crc64.MakeTable(crc64.ECMA)

// Checksum computes the dedupe checksum for thumbnail bytes.
func Checksum(data []byte) int64 {
	return int64(crc64.Checksum(data, crcTable))
}

// Store writes and removes thumbnail blobs for one library directory.
type Store struct {
	dir string
}

// NewStore returns a blob store rooted at <libraryDir>/thumbs.
func NewStore(libraryDir string) *Store {
	return &Store{dir: filepath.Join(libraryDir, "thumbs")}
}

// PathFor returns the blob path for a thumbnail id.
func (s *Store) PathFor(id int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.jpg", id))
}

// Write persists data as the blob for id. Oversized images are downscaled;
// bytes that do not decode as an image are written as-is. The write uses
// rename-over-temp so readers never observe a partial file.
func (s *Store) Write(id int64, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		bounds := img.Bounds()
		if bounds.Dx() > maxEdge || bounds.Dy() > maxEdge {
			img = resize.Thumbnail(maxEdge, maxEdge, img, resize.Lanczos3)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err == nil {
			data = buf.Bytes()
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".thumb-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.PathFor(id))
}

// Remove deletes the blob for id. Missing blobs are not an error.
func (s *Store) Remove(id int64) error {
	err := os.Remove(s.PathFor(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists reports whether a blob for id is on disk.
func (s *Store) Exists(id int64) bool {
	_, err := os.Stat(s.PathFor(id))
	return err == nil
}
