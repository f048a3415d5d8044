package library

import (
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/llehouerou/cadence/internal/metadata"
)

// DefaultProgressBatch is how many files are processed between progress
// ticks.
const DefaultProgressBatch = 300

// State of an indexer session.
type State int

const (
	// Idle: no session; roots and counters may be read.
	Idle State = iota
	// Scanning: walking directories; all side effects go through the
	// writer.
	Scanning
	// Draining: the interrupt latch is raised; the in-flight file
	// finishes its current step, then the session exits.
	Draining
)

// Progress is emitted every progress batch. The final event carries Done
// and the session result.
type Progress struct {
	FilesIndexed    int
	TracksCommitted int
	Done            bool
	Result          ScanResult
}

// Indexer owns scan sessions for one library.
type Indexer struct {
	lib     *Library
	writer  *TrackWriter
	sources []Source

	// ProgressBatch overrides the tick interval; zero means the default.
	ProgressBatch int

	mu    sync.Mutex
	state State

	interrupt atomic.Bool

	filesIndexed    int
	tracksCommitted int

	invalidMu    sync.Mutex
	invalidFiles map[string]bool
}

// NewIndexer returns an indexer over the library with the given external
// sources. The built-in filesystem scan always runs; sources add to it.
func (l *Library) NewIndexer(sources ...Source) *Indexer {
	ix := &Indexer{
		lib:          l,
		writer:       l.Writer(),
		sources:      sources,
		invalidFiles: make(map[string]bool),
	}
	ix.writer.SetInterrupt(&ix.interrupt)
	return ix
}

// State returns the session state.
func (ix *Indexer) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

// Counters returns the current session's monotonic progress counters.
func (ix *Indexer) Counters() (filesIndexed, tracksCommitted int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.filesIndexed, ix.tracksCommitted
}

// Interrupt raises the cooperative interrupt latch. The session ends at
// the next file boundary; the in-flight transaction is rolled back.
func (ix *Indexer) Interrupt() {
	ix.mu.Lock()
	if ix.state == Scanning {
		ix.state = Draining
	}
	ix.mu.Unlock()
	ix.interrupt.Store(true)
	for _, src := range ix.sources {
		src.Interrupt()
	}
}

// InvalidFiles returns the paths that failed tag reading during the last
// session.
func (ix *Indexer) InvalidFiles() []string {
	ix.invalidMu.Lock()
	defer ix.invalidMu.Unlock()
	files := make([]string, 0, len(ix.invalidFiles))
	for f := range ix.invalidFiles {
		files = append(files, f)
	}
	return files
}

func (ix *Indexer) interrupted() bool {
	return ix.interrupt.Load()
}

func (ix *Indexer) batch() int {
	if ix.ProgressBatch > 0 {
		return ix.ProgressBatch
	}
	return DefaultProgressBatch
}

// Scan runs one session over the given roots. Progress ticks are sent to
// progress if non-nil; the channel is closed when the session ends.
// Returns ScanRollback only on a store-level failure; an interrupted
// session still reports ScanCommit for the files that were committed.
func (ix *Indexer) Scan(roots []string, progress chan<- Progress) (ScanResult, error) {
	ix.mu.Lock()
	if ix.state != Idle {
		ix.mu.Unlock()
		return ScanRollback, opErr("start scan", ErrConflict, errors.New("session already active"))
	}
	ix.state = Scanning
	ix.filesIndexed = 0
	ix.tracksCommitted = 0
	ix.mu.Unlock()

	ix.interrupt.Store(false)
	ix.invalidMu.Lock()
	ix.invalidFiles = make(map[string]bool)
	ix.invalidMu.Unlock()

	defer func() {
		ix.mu.Lock()
		ix.state = Idle
		ix.mu.Unlock()
	}()
	if progress != nil {
		defer close(progress)
	}

	canonical := make([]string, 0, len(roots))
	for _, root := range roots {
		if abs, err := filepath.Abs(root); err == nil {
			canonical = append(canonical, filepath.Clean(abs))
		}
	}

	result := ix.scanFilesystem(canonical, progress)

	for _, src := range ix.sources {
		if ix.interrupted() {
			break
		}
		src.OnBeforeScan()
		if r := src.Scan(ix.writer, canonical, ix.interrupted); r == ScanRollback {
			result = ScanRollback
		}
		src.OnAfterScan()
	}

	if result == ScanCommit && !ix.interrupted() {
		if err := ix.collectGarbage(canonical); err != nil {
			ix.lib.log.Error("scan commit-rollback", "error", err)
			result = ScanRollback
		}
	}

	ix.emit(progress, Progress{
		FilesIndexed:    ix.filesIndexed,
		TracksCommitted: ix.tracksCommitted,
		Done:            true,
		Result:          result,
	})
	return result, nil
}

func (ix *Indexer) emit(progress chan<- Progress, p Progress) {
	if progress != nil {
		progress <- p
	}
}

func (ix *Indexer) scanFilesystem(roots []string, progress chan<- Progress) ScanResult {
	folderIDs := make(map[string]int64)
	result := ScanCommit

	for _, root := range roots {
		if ix.interrupted() {
			break
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if ix.interrupted() {
				return filepath.SkipAll
			}
			if walkErr != nil {
				// Unreadable directories are logged and skipped.
				ix.lib.log.Warn("walk error", "path", path, "error", walkErr)
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() {
				return nil
			}
			if ix.lib.readers.For(filepath.Ext(path)) == nil {
				return nil
			}

			if err := ix.indexFile(root, path, d, folderIDs); err != nil {
				if errors.Is(err, ErrInterrupted) {
					return filepath.SkipAll
				}
				if errors.Is(err, ErrSchemaViolation) {
					ix.lib.log.Error("scan commit-rollback", "path", path, "error", err)
					result = ScanRollback
					return filepath.SkipAll
				}
				// Local file problems: log, remember, move on.
				ix.lib.log.Warn("skipping file", "path", path, "error", err)
			}

			ix.mu.Lock()
			ix.filesIndexed++
			files, tracks := ix.filesIndexed, ix.tracksCommitted
			ix.mu.Unlock()
			if files%ix.batch() == 0 {
				ix.emit(progress, Progress{FilesIndexed: files, TracksCommitted: tracks})
			}
			return nil
		})
		if err != nil && !errors.Is(err, filepath.SkipAll) {
			ix.lib.log.Warn("walk failed", "root", root, "error", err)
		}
	}
	return result
}

// indexFile runs change detection and, when needed, the read-and-write
// path for one file. Each file is one complete, bounded transaction.
func (ix *Indexer) indexFile(root, path string, d fs.DirEntry, folderIDs map[string]int64) error {
	info, err := d.Info()
	if err != nil {
		return opErr("stat", ErrIo, err)
	}
	filesize := info.Size()
	filetime := info.ModTime().Unix()

	dir := filepath.Dir(path)
	folderID, ok := folderIDs[dir]
	if !ok {
		if err := ix.lib.store.WithTx(func(tx *sql.Tx) error {
			var err error
			folderID, err = resolveFolder(tx, root, dir)
			return err
		}); err != nil {
			return opErr("resolve folder", ErrSchemaViolation, err)
		}
		folderIDs[dir] = folderID
	}

	filename := filepath.Base(path)
	needs, existingID, err := ix.needsIndexing(folderID, filename, filesize, filetime)
	if err != nil {
		return err
	}
	if !needs {
		return nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	reader := ix.lib.readers.For(ext)
	if reader == nil {
		return opErr("select reader", ErrTagParse, nil)
	}

	bag := metadata.NewBag()
	bag.Set(metadata.KeyPath, path)
	bag.Set(metadata.KeyFilename, filename)
	bag.Set(metadata.KeyExtension, ext)
	bag.Set(metadata.KeyFilesize, strconv.FormatInt(filesize, 10))
	bag.Set(metadata.KeyFiletime, strconv.FormatInt(filetime, 10))

	if !reader.Read(path, bag) {
		ix.invalidMu.Lock()
		ix.invalidFiles[path] = true
		ix.invalidMu.Unlock()
		return opErr("read tags", ErrTagParse, nil)
	}

	if _, err := ix.writer.Save(SaveRequest{
		Bag:      bag,
		FolderID: folderID,
		SourceID: SourceIDFilesystem,
		TrackID:  existingID,
	}); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.tracksCommitted++
	ix.mu.Unlock()
	return nil
}

// needsIndexing implements per-file change detection: a file needs a
// rescan when it is absent from the store or its recorded
// (filesize, filetime) differ from the file's. The match case is the
// common steady-state fast path.
func (ix *Indexer) needsIndexing(folderID int64, filename string, filesize, filetime int64) (needs bool, existingID int64, err error) {
	stmt, err := ix.lib.store.Cached(`
		SELECT id, filesize, filetime FROM tracks WHERE folder_id = ? AND filename = ?
	`)
	if err != nil {
		return false, 0, opErr("needs indexing", ErrSchemaViolation, err)
	}
	var id int64
	var dbSize, dbTime sql.NullInt64
	err = stmt.QueryRow(folderID, filename).Scan(&id, &dbSize, &dbTime)
	if errors.Is(err, sql.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, opErr("needs indexing", ErrSchemaViolation, err)
	}
	if dbSize.Int64 != filesize || dbTime.Int64 != filetime {
		return true, id, nil
	}
	return false, 0, nil
}

// collectGarbage removes filesystem tracks whose folder fell outside the
// current roots or whose file disappeared, cascading through the junction
// tables and the play queue.
func (ix *Indexer) collectGarbage(roots []string) error {
	type trackLoc struct {
		id   int64
		path string
	}
	rows, err := ix.lib.store.DB().Query(`
		SELECT t.id, p.path || f.relative_path || '/' || t.filename
		FROM tracks t, folders f, paths p
		WHERE t.folder_id = f.id AND f.path_id = p.id AND t.source_id = ?
	`, SourceIDFilesystem)
	if err != nil {
		return err
	}
	var doomed []int64
	var tracks []trackLoc
	for rows.Next() {
		var t trackLoc
		if err := rows.Scan(&t.id, &t.path); err != nil {
			rows.Close()
			return err
		}
		tracks = append(tracks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range tracks {
		if !underAnyRoot(t.path, roots) {
			doomed = append(doomed, t.id)
			continue
		}
		if _, err := os.Stat(t.path); err != nil {
			doomed = append(doomed, t.id)
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	return ix.lib.store.WithTx(func(tx *sql.Tx) error {
		for _, id := range doomed {
			for _, q := range []string{
				`DELETE FROM track_artists WHERE track_id = ?`,
				`DELETE FROM track_genres WHERE track_id = ?`,
				`DELETE FROM track_meta WHERE track_id = ?`,
				`DELETE FROM play_queue WHERE track_id = ?`,
				`DELETE FROM playlist_tracks WHERE track_id = ?`,
				`DELETE FROM tracks WHERE id = ?`,
			} {
				if _, err := tx.Exec(q, id); err != nil {
					return err
				}
			}
		}
		// Folders with no tracks left are dropped; paths rows are kept.
		_, err := tx.Exec(`
			DELETE FROM folders WHERE id NOT IN (SELECT DISTINCT folder_id FROM tracks)
		`)
		return err
	})
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if strings.HasPrefix(path, strings.TrimRight(root, "/")+"/") {
			return true
		}
	}
	return false
}
