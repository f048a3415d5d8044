// Package tracklist provides an ordered, position-addressable sequence of
// track handles with lazy metadata hydration and change notifications.
// A handle is a small copyable value carrying the track's internal id;
// hydrated metadata lives in a cache owned by the list.
package tracklist

import (
	"sync"

	"github.com/llehouerou/cadence/internal/library"
)

// Tracks hydrated around a cache miss, in each direction.
const hydrateWindow = 25

// Change describes a list mutation for observers. Either All is set, or
// Index points at the affected position.
type Change struct {
	All   bool
	Index int
}

// Observer receives list change notifications, in commit order.
type Observer interface {
	ListChanged(Change)
}

// List is a mutable, observable sequence of track ids.
type List struct {
	lib *library.Library

	mu        sync.Mutex
	ids       []int64
	cache     map[int64]*library.Track
	observers []Observer
}

// New returns an empty list over lib.
func New(lib *library.Library) *List {
	return &List{
		lib:   lib,
		cache: make(map[int64]*library.Track),
	}
}

// Handle is a cheap, copyable reference to one track in a list.
type Handle struct {
	list *List
	id   int64
}

// ID returns the track's internal id.
func (h Handle) ID() int64 {
	return h.id
}

// Get returns the track's hydrated metadata, querying through the list's
// cache on a miss.
func (h Handle) Get() (*library.Track, error) {
	return h.list.trackByID(h.id)
}

// Reset replaces the list's contents. Observers see a whole-list change.
func (l *List) Reset(ids []int64) {
	l.mu.Lock()
	l.ids = append([]int64(nil), ids...)
	l.cache = make(map[int64]*library.Track)
	l.mu.Unlock()
	l.notify(Change{All: true})
}

// Len returns the number of tracks.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// IDs returns a copy of the ordered ids.
func (l *List) IDs() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.ids...)
}

// IDAt returns the id at position i, or 0 when out of range.
func (l *List) IDAt(i int) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.ids) {
		return 0
	}
	return l.ids[i]
}

// At returns a handle for position i without forcing hydration. The zero
// handle is returned for out-of-range positions.
func (l *List) At(i int) Handle {
	return Handle{list: l, id: l.IDAt(i)}
}

// Get returns the hydrated track at position i, hydrating a window
// around it on a cache miss.
func (l *List) Get(i int) (*library.Track, error) {
	l.mu.Lock()
	if i < 0 || i >= len(l.ids) {
		l.mu.Unlock()
		return nil, library.ErrNotFound
	}
	id := l.ids[i]
	if t, ok := l.cache[id]; ok {
		l.mu.Unlock()
		return t, nil
	}
	l.mu.Unlock()

	if err := l.HydrateWindow(i-hydrateWindow, i+hydrateWindow+1); err != nil {
		return nil, err
	}

	l.mu.Lock()
	t, ok := l.cache[id]
	l.mu.Unlock()
	if !ok {
		return nil, library.ErrNotFound
	}
	return t, nil
}

// HydrateWindow fills the cache for positions [start, end) with one
// query. Out-of-range bounds are clamped.
func (l *List) HydrateWindow(start, end int) error {
	l.mu.Lock()
	if start < 0 {
		start = 0
	}
	if end > len(l.ids) {
		end = len(l.ids)
	}
	var missing []int64
	for _, id := range l.ids[start:max(start, end)] {
		if _, ok := l.cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	l.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}
	tracks, err := l.lib.TracksByIDs(missing)
	if err != nil {
		return err
	}

	l.mu.Lock()
	for id, t := range tracks {
		l.cache[id] = t
	}
	l.mu.Unlock()
	return nil
}

func (l *List) trackByID(id int64) (*library.Track, error) {
	l.mu.Lock()
	if t, ok := l.cache[id]; ok {
		l.mu.Unlock()
		return t, nil
	}
	// Hydrate around the id's position when it is in the list.
	pos := -1
	for i, listed := range l.ids {
		if listed == id {
			pos = i
			break
		}
	}
	l.mu.Unlock()

	if pos >= 0 {
		return l.Get(pos)
	}
	return l.lib.TrackByID(id)
}

// Move shifts the track at from to position to. Ordering is stable: the
// tracks between the two positions slide by one.
func (l *List) Move(from, to int) bool {
	l.mu.Lock()
	if from < 0 || from >= len(l.ids) || to < 0 || to >= len(l.ids) {
		l.mu.Unlock()
		return false
	}
	if from == to {
		l.mu.Unlock()
		return true
	}
	id := l.ids[from]
	l.ids = append(l.ids[:from], l.ids[from+1:]...)
	l.ids = append(l.ids[:to], append([]int64{id}, l.ids[to:]...)...)
	l.mu.Unlock()
	l.notify(Change{All: true})
	return true
}

// Delete removes the track at position i.
func (l *List) Delete(i int) bool {
	l.mu.Lock()
	if i < 0 || i >= len(l.ids) {
		l.mu.Unlock()
		return false
	}
	l.ids = append(l.ids[:i], l.ids[i+1:]...)
	l.mu.Unlock()
	l.notify(Change{Index: i})
	return true
}

// Insert places a handle's track at position i, shifting the tail.
func (l *List) Insert(i int, h Handle) bool {
	l.mu.Lock()
	if i < 0 || i > len(l.ids) {
		l.mu.Unlock()
		return false
	}
	l.ids = append(l.ids[:i], append([]int64{h.ID()}, l.ids[i:]...)...)
	l.mu.Unlock()
	l.notify(Change{Index: i})
	return true
}

// Append adds a handle's track at the end.
func (l *List) Append(h Handle) {
	l.mu.Lock()
	l.ids = append(l.ids, h.ID())
	i := len(l.ids) - 1
	l.mu.Unlock()
	l.notify(Change{Index: i})
}

// AppendID adds a track id at the end.
func (l *List) AppendID(id int64) {
	l.Append(Handle{list: l, id: id})
}

// Subscribe registers an observer for change notifications.
func (l *List) Subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Unsubscribe removes an observer.
func (l *List) Unsubscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, obs := range l.observers {
		if obs == o {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			return
		}
	}
}

func (l *List) notify(c Change) {
	l.mu.Lock()
	observers := append([]Observer(nil), l.observers...)
	l.mu.Unlock()
	for _, o := range observers {
		o.ListChanged(c)
	}
}
