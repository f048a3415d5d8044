package tracklist

import (
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/llehouerou/cadence/internal/library"
	"github.com/llehouerou/cadence/internal/metadata"
)

func setupList(t *testing.T, trackCount int) (*List, []int64) {
	t.Helper()
	lib, err := library.Open(t.TempDir(), library.Options{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	folderID, err := lib.ResolveFolder("/music", "/music")
	if err != nil {
		t.Fatal(err)
	}

	var ids []int64
	for i := 0; i < trackCount; i++ {
		bag := metadata.NewBag()
		bag.Set("title", "Track "+strconv.Itoa(i))
		bag.Set("artist", "X")
		bag.Set("filename", strconv.Itoa(i)+".mp3")
		id, err := lib.Writer().Save(library.SaveRequest{Bag: bag, FolderID: folderID})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	list := New(lib)
	list.Reset(ids)
	return list, ids
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []Change
}

func (o *recordingObserver) ListChanged(c Change) {
	o.mu.Lock()
	o.changes = append(o.changes, c)
	o.mu.Unlock()
}

func TestListAccessors(t *testing.T) {
	list, ids := setupList(t, 3)

	if list.Len() != 3 {
		t.Fatalf("len = %d", list.Len())
	}
	if list.IDAt(1) != ids[1] {
		t.Errorf("IDAt(1) = %d", list.IDAt(1))
	}
	if list.IDAt(99) != 0 {
		t.Errorf("out of range IDAt = %d", list.IDAt(99))
	}
	if h := list.At(2); h.ID() != ids[2] {
		t.Errorf("At(2).ID() = %d", h.ID())
	}
}

func TestLazyHydration(t *testing.T) {
	list, _ := setupList(t, 5)

	track, err := list.Get(2)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if track.Title != "Track 2" {
		t.Errorf("title = %q", track.Title)
	}

	// The window hydration filled neighbors too: a handle read hits the
	// cache without another query path involved.
	h := list.At(3)
	neighbor, err := h.Get()
	if err != nil {
		t.Fatal(err)
	}
	if neighbor.Title != "Track 3" {
		t.Errorf("neighbor title = %q", neighbor.Title)
	}
}

func TestHydrateWindowBounds(t *testing.T) {
	list, _ := setupList(t, 3)

	// Out-of-range bounds clamp instead of failing.
	if err := list.HydrateWindow(-10, 100); err != nil {
		t.Fatalf("HydrateWindow failed: %v", err)
	}
	if err := list.HydrateWindow(2, 2); err != nil {
		t.Fatalf("empty window failed: %v", err)
	}
}

func TestMoveIsShift(t *testing.T) {
	list, ids := setupList(t, 5)

	if !list.Move(3, 1) {
		t.Fatal("Move failed")
	}
	want := []int64{ids[0], ids[3], ids[1], ids[2], ids[4]}
	if got := list.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("after move = %v, expected %v", got, want)
	}

	if list.Move(0, 99) {
		t.Error("out-of-range move must fail")
	}
}

func TestDeleteInsertAppend(t *testing.T) {
	list, ids := setupList(t, 3)

	if !list.Delete(1) {
		t.Fatal("Delete failed")
	}
	if got := list.IDs(); !reflect.DeepEqual(got, []int64{ids[0], ids[2]}) {
		t.Errorf("after delete = %v", got)
	}

	if !list.Insert(1, list.At(0)) {
		t.Fatal("Insert failed")
	}
	if got := list.IDs(); !reflect.DeepEqual(got, []int64{ids[0], ids[0], ids[2]}) {
		t.Errorf("after insert = %v", got)
	}

	list.AppendID(ids[1])
	if list.Len() != 4 || list.IDAt(3) != ids[1] {
		t.Errorf("after append = %v", list.IDs())
	}
}

func TestObserverNotifications(t *testing.T) {
	list, ids := setupList(t, 4)

	obs := &recordingObserver{}
	list.Subscribe(obs)

	list.Reset(ids)
	list.Move(0, 1)
	list.Delete(0)
	list.AppendID(ids[0])

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.changes) != 4 {
		t.Fatalf("changes = %+v", obs.changes)
	}
	if !obs.changes[0].All {
		t.Error("Reset must notify a whole-list change")
	}
	if !obs.changes[1].All {
		t.Error("Move must notify a whole-list change")
	}
	if obs.changes[2].All || obs.changes[2].Index != 0 {
		t.Errorf("Delete change = %+v", obs.changes[2])
	}
	if obs.changes[3].All || obs.changes[3].Index != 3 {
		t.Errorf("Append change = %+v", obs.changes[3])
	}

	list.Unsubscribe(obs)
	list.Delete(0)
	if len(obs.changes) != 4 {
		t.Error("unsubscribed observer still notified")
	}
}
