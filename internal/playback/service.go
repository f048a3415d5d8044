// Package playback is the transport facade over a play queue derived
// from the library. It answers transport-level queries (play, pause,
// seek, volume) and tracks position against a wall clock; audio decoding
// belongs to external plugins and never happens here.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/llehouerou/cadence/internal/library"
	"github.com/llehouerou/cadence/internal/tracklist"
)

// Service owns the transport state machine and the play queue.
type Service struct {
	mu sync.Mutex

	queue *tracklist.List
	index int

	state    State
	position time.Duration
	// startedAt anchors position while playing.
	startedAt time.Time

	volume  float64
	repeat  RepeatMode
	shuffle bool

	subs []*Subscription
}

// NewService returns a stopped service over queue.
func NewService(queue *tracklist.List) *Service {
	return &Service{
		queue:  queue,
		index:  -1,
		volume: 1.0,
	}
}

// Queue returns the underlying play queue list.
func (s *Service) Queue() *tracklist.List {
	return s.queue
}

// Subscribe registers an event subscriber.
func (s *Service) Subscribe() *Subscription {
	sub := newSubscription()
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub
}

// Close releases all subscriptions.
func (s *Service) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

func (s *Service) each(fn func(*Subscription)) {
	s.mu.Lock()
	subs := append([]*Subscription(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		fn(sub)
	}
}

// now returns the position the transport clock has reached.
// Callers hold s.mu.
func (s *Service) now() time.Duration {
	if s.state != Playing {
		return s.position
	}
	return s.position + time.Since(s.startedAt)
}

func (s *Service) setState(next State) {
	prev := s.state
	if prev == next {
		return
	}
	s.state = next
	go s.each(func(sub *Subscription) {
		sub.sendState(StateChange{Previous: prev, Current: next})
	})
}

// Play starts playback at queue position index.
func (s *Service) Play(index int) error {
	if index < 0 || index >= s.queue.Len() {
		return library.ErrNotFound
	}

	s.mu.Lock()
	prevIndex := s.index
	s.index = index
	s.position = 0
	s.startedAt = time.Now()
	s.setState(Playing)
	s.mu.Unlock()

	if prevIndex != index {
		s.each(func(sub *Subscription) {
			sub.sendTrack(TrackChange{PreviousIndex: prevIndex, Index: index})
		})
	}
	return nil
}

// Prepare positions the transport at index/offset without starting
// playback. Used to restore a persisted session.
func (s *Service) Prepare(index int, offset time.Duration) error {
	if index < 0 || index >= s.queue.Len() {
		return library.ErrNotFound
	}
	s.mu.Lock()
	s.index = index
	s.position = offset
	s.setState(Paused)
	s.mu.Unlock()
	return nil
}

// Pause pauses playback.
func (s *Service) Pause() {
	s.mu.Lock()
	if s.state == Playing {
		s.position = s.now()
		s.setState(Paused)
	}
	s.mu.Unlock()
}

// Resume resumes paused (or prepared) playback.
func (s *Service) Resume() {
	s.mu.Lock()
	if s.state == Paused {
		s.startedAt = time.Now()
		s.setState(Playing)
	}
	s.mu.Unlock()
}

// Toggle pauses when playing and resumes when paused or prepared.
func (s *Service) Toggle() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	switch state {
	case Playing:
		s.Pause()
	case Paused:
		s.Resume()
	}
}

// Stop stops playback and clears the active position.
func (s *Service) Stop() {
	s.mu.Lock()
	s.index = -1
	s.position = 0
	s.setState(Stopped)
	s.mu.Unlock()
}

// Next advances to the next queue entry, honoring the repeat mode.
func (s *Service) Next() error {
	s.mu.Lock()
	index := s.index
	repeat := s.repeat
	s.mu.Unlock()

	length := s.queue.Len()
	if length == 0 {
		return library.ErrNotFound
	}
	switch {
	case repeat == RepeatTrack:
		return s.Play(index)
	case index+1 < length:
		return s.Play(index + 1)
	case repeat == RepeatList:
		return s.Play(0)
	}
	s.Stop()
	return nil
}

// Previous restarts the current track when more than a few seconds in,
// otherwise steps back one entry.
func (s *Service) Previous() error {
	s.mu.Lock()
	index := s.index
	replay := s.now() > 3*time.Second
	s.mu.Unlock()

	if replay || index <= 0 {
		if index < 0 {
			return library.ErrNotFound
		}
		return s.Play(index)
	}
	return s.Play(index - 1)
}

// State returns the transport state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueIndex returns the active queue position, -1 when stopped.
func (s *Service) QueueIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// CurrentTrack returns the active track, or nil when stopped.
func (s *Service) CurrentTrack() *library.Track {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	if index < 0 {
		return nil
	}
	t, err := s.queue.Get(index)
	if err != nil {
		return nil
	}
	return t
}

// Position returns the transport position within the active track.
func (s *Service) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// Duration returns the active track's duration, zero when unknown.
func (s *Service) Duration() time.Duration {
	t := s.CurrentTrack()
	if t == nil {
		return 0
	}
	return time.Duration(t.Duration) * time.Second
}

// SeekTo sets the absolute position, clamped to the track bounds.
func (s *Service) SeekTo(position time.Duration) {
	duration := s.Duration()
	if position < 0 {
		position = 0
	}
	if duration > 0 && position > duration {
		position = duration
	}

	s.mu.Lock()
	s.position = position
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.each(func(sub *Subscription) {
		sub.sendPosition(PositionChange{Position: position})
	})
}

// Seek moves the position by delta.
func (s *Service) Seek(delta time.Duration) {
	s.SeekTo(s.Position() + delta)
}

// SeekProportional moves by fraction of the track duration; 0.05 is the
// conventional step.
func (s *Service) SeekProportional(fraction float64) {
	s.Seek(time.Duration(fraction * float64(s.Duration())))
}

// Volume returns the current volume in [0, 1].
func (s *Service) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume clamps and sets the volume.
func (s *Service) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = math.Min(1, math.Max(0, v))
	s.mu.Unlock()
}

// VolumeUp raises the volume: 5% steps at or above 10%, 1% below.
func (s *Service) VolumeUp() {
	v := s.Volume()
	delta := 0.01
	if math.Round(v*100) >= 10 {
		delta = 0.05
	}
	s.SetVolume(v + delta)
}

// VolumeDown lowers the volume: 5% steps above 10%, 1% at or below.
func (s *Service) VolumeDown() {
	v := s.Volume()
	delta := 0.01
	if math.Round(v*100) > 10 {
		delta = 0.05
	}
	s.SetVolume(v - delta)
}

// RepeatMode returns the repeat mode.
func (s *Service) RepeatMode() RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

// SetRepeatMode sets the repeat mode.
func (s *Service) SetRepeatMode(mode RepeatMode) {
	s.mu.Lock()
	s.repeat = mode
	shuffle := s.shuffle
	s.mu.Unlock()
	s.each(func(sub *Subscription) {
		sub.sendMode(ModeChange{RepeatMode: mode, Shuffle: shuffle})
	})
}

// Shuffle reports whether shuffle is on.
func (s *Service) Shuffle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffle
}

// SetShuffle toggles shuffle mode.
func (s *Service) SetShuffle(enabled bool) {
	s.mu.Lock()
	s.shuffle = enabled
	mode := s.repeat
	s.mu.Unlock()
	s.each(func(sub *Subscription) {
		sub.sendMode(ModeChange{RepeatMode: mode, Shuffle: enabled})
	})
}

// ListChanged implements tracklist.Observer so queue edits fan out to
// transport subscribers in commit order.
func (s *Service) ListChanged(tracklist.Change) {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	length := s.queue.Len()
	s.each(func(sub *Subscription) {
		sub.sendQueue(QueueChange{Length: length, Index: index})
	})
}
