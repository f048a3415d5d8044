package playback

import (
	"time"

	"github.com/llehouerou/cadence/internal/playqueue"
)

// SessionOptions mirror the configuration keys governing queue
// persistence.
type SessionOptions struct {
	SaveSessionOnExit       bool
	ResumePlaybackOnStartup bool
}

// SaveSession persists the current queue, active index and position.
// A no-op unless SaveSessionOnExit is set.
func (s *Service) SaveSession(store *playqueue.Store, opts SessionOptions) error {
	if !opts.SaveSessionOnExit {
		return nil
	}
	return store.Save(playqueue.Snapshot{
		TrackIDs: s.queue.IDs(),
		Index:    s.QueueIndex(),
		Offset:   s.Position().Seconds(),
	})
}

// RestoreSession loads the persisted queue into the service's track
// list and prepares the transport at the saved position. When
// ResumePlaybackOnStartup is set, playback resumes immediately.
func (s *Service) RestoreSession(store *playqueue.Store, opts SessionOptions) error {
	if !opts.SaveSessionOnExit {
		return nil
	}
	snap, err := store.Load()
	if err != nil {
		return err
	}
	s.queue.Reset(snap.TrackIDs)
	if snap.Index < 0 || snap.Index >= len(snap.TrackIDs) {
		return nil
	}
	if err := s.Prepare(snap.Index, time.Duration(snap.Offset*float64(time.Second))); err != nil {
		return err
	}
	if opts.ResumePlaybackOnStartup {
		s.Resume()
	}
	return nil
}
