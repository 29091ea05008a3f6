package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/services"
	"github.com/desertthunder/nrx/internal/shared"
)

const (
	// MaxTracksPerRequest is the provider's limit on URIs per add-tracks call.
	MaxTracksPerRequest = 100

	PlaylistNamePrefix = "New Monthly Releases - "
	PlaylistDateLayout = "01-02-2006"
)

// PlaylistSink is the write side of the catalog used by [PlaylistWriter].
//
// Implemented by [services.SpotifyService].
type PlaylistSink interface {
	CreatePlaylist(ctx context.Context, userID string, req services.CreatePlaylistRequest) (*services.SpotifyPlaylist, error)
	AddTracks(ctx context.Context, playlistID string, uris []string) (*services.SnapshotResponse, error)
}

// WriterOpts configures a [PlaylistWriter].
type WriterOpts struct {
	Sink        PlaylistSink
	Logger      *log.Logger
	Now         func() time.Time
	Public      bool
	Description string
}

// PlaylistWriter creates the dated release playlist and fills it in bounded batches.
type PlaylistWriter struct {
	sink        PlaylistSink
	logger      *log.Logger
	now         func() time.Time
	public      bool
	description string
	last        *models.Playlist
}

// NewPlaylistWriter creates a [PlaylistWriter] from opts.
func NewPlaylistWriter(opts WriterOpts) *PlaylistWriter {
	w := &PlaylistWriter{
		sink:        opts.Sink,
		logger:      opts.Logger,
		now:         opts.Now,
		public:      opts.Public,
		description: opts.Description,
	}
	if w.logger == nil {
		w.logger = shared.NewLogger(nil)
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// PlaylistName returns the name for a playlist created now, e.g. "New Monthly Releases - 10-16-2026".
func (w *PlaylistWriter) PlaylistName() string {
	return PlaylistNamePrefix + w.now().Format(PlaylistDateLayout)
}

// CreatePlaylist creates an empty playlist owned by userID and remembers it as [PlaylistWriter.Last].
func (w *PlaylistWriter) CreatePlaylist(ctx context.Context, userID string) (*models.Playlist, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: playlist owner is required", shared.ErrInvalidInput)
	}

	name := w.PlaylistName()
	created, err := w.sink.CreatePlaylist(ctx, userID, services.CreatePlaylistRequest{
		Name:        name,
		Public:      w.public,
		Description: w.description,
	})
	if err != nil {
		return nil, err
	}

	pl := &models.Playlist{ID: created.ID, Name: name, URL: created.URL(), Public: w.public}
	if created.Name != "" {
		pl.Name = created.Name
	}
	w.last = pl

	w.logger.Info("created playlist", "id", pl.ID, "name", pl.Name, "public", shared.VisibilityString(pl.Public))
	return pl, nil
}

// Last returns the most recently created playlist, or nil.
func (w *PlaylistWriter) Last() *models.Playlist {
	return w.last
}

// AddTracks writes uris to a playlist in [SplitChunks] order, one request per chunk.
//
// Chunks are sent sequentially and the first failure stops the remaining writes.
func (w *PlaylistWriter) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	return w.addTracks(ctx, playlistID, uris, nil)
}

func (w *PlaylistWriter) addTracks(ctx context.Context, playlistID string, uris []string, progress chan<- ProgressUpdate) error {
	chunks := SplitChunks(uris)
	for i, chunk := range chunks {
		sendProgress(progress, addTracksUpdate(i+1, len(chunks), len(chunk)))

		if _, err := w.sink.AddTracks(ctx, playlistID, chunk); err != nil {
			return fmt.Errorf("failed to add chunk %d of %d: %w", i+1, len(chunks), err)
		}
		w.logger.Debug("added chunk", "chunk", i+1, "size", len(chunk))
	}

	w.logger.Info("added tracks to playlist", "id", playlistID, "tracks", len(uris), "requests", len(chunks))
	return nil
}

// ChunkCount returns how many write requests n track URIs need.
//
// More than 200 items use three chunks and more than 100 use two; above 300 the count grows so
// that no chunk exceeds [MaxTracksPerRequest]. Zero items need no request.
func ChunkCount(n int) int {
	if n <= 0 {
		return 0
	}

	tier := 1
	switch {
	case n > 200:
		tier = 3
	case n > 100:
		tier = 2
	}
	return max(tier, (n+MaxTracksPerRequest-1)/MaxTracksPerRequest)
}

// SplitChunks partitions uris into [ChunkCount] contiguous, near-equal chunks.
// The first len(uris) % k chunks carry one extra item, so 250 splits as 84, 83, 83.
func SplitChunks(uris []string) [][]string {
	k := ChunkCount(len(uris))
	if k == 0 {
		return nil
	}

	size, extra := len(uris)/k, len(uris)%k
	chunks := make([][]string, 0, k)
	for i, start := 0, 0; i < k; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, uris[start:end])
		start = end
	}
	return chunks
}
