package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunSucceeded, RunFailed:
		return true
	default:
		return false
	}
}

// Run records one execution of the release pipeline.
type Run struct {
	id           string
	sequence     int
	status       RunStatus
	playlist     Playlist
	artistCount  int
	albumCount   int
	trackCount   int
	errorKind    string
	errorMessage string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	albums       []Album
}

// NewRun creates a pending run that started at startedAt.
func NewRun(startedAt time.Time) *Run {
	return &Run{
		status:    RunPending,
		startedAt: startedAt,
		createdAt: startedAt,
		updatedAt: startedAt,
	}
}

func (r *Run) ID() string { return r.id }
func (r *Run) Sequence() int { return r.sequence }
func (r *Run) Status() RunStatus { return r.status }
func (r *Run) Playlist() Playlist { return r.playlist }
func (r *Run) ArtistCount() int { return r.artistCount }
func (r *Run) AlbumCount() int { return r.albumCount }
func (r *Run) TrackCount() int { return r.trackCount }
func (r *Run) ErrorKind() string { return r.errorKind }
func (r *Run) ErrorMessage() string { return r.errorMessage }
func (r *Run) StartedAt() time.Time { return r.startedAt }
func (r *Run) FinishedAt() *time.Time { return r.finishedAt }
func (r *Run) CreatedAt() time.Time { return r.createdAt }
func (r *Run) UpdatedAt() time.Time { return r.updatedAt }
func (r *Run) Albums() []Album { return r.albums }

func (r *Run) SetID(id string) { r.id = id }
func (r *Run) SetSequence(seq int) { r.sequence = seq }
func (r *Run) SetStatus(s RunStatus) { r.status = s }
func (r *Run) SetPlaylist(p Playlist) { r.playlist = p }
func (r *Run) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *Run) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *Run) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *Run) SetAlbums(albums []Album) { r.albums = albums }
func (r *Run) SetError(kind, message string) { r.errorKind, r.errorMessage = kind, message }

// SetCounts records the size of each aggregation stage.
func (r *Run) SetCounts(artists, albums, tracks int) {
	r.artistCount, r.albumCount, r.trackCount = artists, albums, tracks
}

// Succeed marks the run finished with the created playlist.
func (r *Run) Succeed(pl Playlist, at time.Time) {
	r.status = RunSucceeded
	r.playlist = pl
	r.finishedAt = &at
}

// Fail marks the run finished with an error classified as kind.
func (r *Run) Fail(kind string, err error, at time.Time) {
	r.status = RunFailed
	r.errorKind = kind
	if err != nil {
		r.errorMessage = err.Error()
	}
	r.finishedAt = &at
}

// Duration is the elapsed time between start and finish, or zero while the run is in flight.
func (r *Run) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

func (r *Run) Validate() error {
	if !r.status.Valid() {
		return fmt.Errorf("invalid run status %q", r.status)
	}
	if r.startedAt.IsZero() {
		return fmt.Errorf("run start time is required")
	}
	if r.artistCount < 0 || r.albumCount < 0 || r.trackCount < 0 {
		return fmt.Errorf("run counts must be non-negative")
	}
	if r.status == RunSucceeded && r.playlist.ID == "" {
		return fmt.Errorf("succeeded run requires a playlist")
	}
	return nil
}

var _ Model = (*Run)(nil)
