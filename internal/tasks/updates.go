package tasks

import (
	"fmt"

	"github.com/desertthunder/nrx/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, zero when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authorize Phase = iota
	FetchArtists
	FetchAlbums
	FetchTracks
	ResolveUser
	CreatePlaylist
	AddTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case Authorize:
		return "authorize"
	case FetchArtists:
		return "fetch_artists"
	case FetchAlbums:
		return "fetch_albums"
	case FetchTracks:
		return "fetch_tracks"
	case ResolveUser:
		return "resolve_user"
	case CreatePlaylist:
		return "create_playlist"
	case AddTracks:
		return "add_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func authorizeUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: Authorize, Step: 1, Total: 1, Message: "Exchanging authorization code..."}
}

func artistPageUpdate(page, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchArtists,
		Step:    page,
		Message: fmt.Sprintf("Fetching followed artists (page %d, %d so far)...", page, found),
	}
}

func artistAlbumsUpdate(step, total int, artistID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching releases for artist %s...", step, total, artistID),
	}
}

func albumTracksUpdate(step, total int, album models.Album) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, album.Artist, album.Name),
		Data:    album,
	}
}

func resolveUserUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: ResolveUser, Step: 1, Total: 1, Message: "Looking up playlist owner..."}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{Phase: CreatePlaylist, Step: 1, Total: 1, Message: fmt.Sprintf("Creating playlist %q...", name)}
}

func playlistCreatedUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addTracksUpdate(step, total, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, size),
	}
}

func doneUpdate(res *Result) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Added %d tracks from %d releases", len(res.Tracks), len(res.Albums)),
		Data:    res,
	}
}
