package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/services"
	"github.com/desertthunder/nrx/internal/shared"
)

const (
	DefaultMarket        = "US"
	DefaultWindowDays    = 28
	DefaultIncludeGroups = "album,single"
	DefaultPageLimit     = 50
)

// ReleaseSource is the paged catalog read by [ReleaseAggregator].
//
// Implemented by [services.SpotifyService].
type ReleaseSource interface {
	FollowedArtists(ctx context.Context, uri string) (*services.Page[services.SpotifyArtist], error)
	ArtistAlbums(ctx context.Context, uri string) (*services.Page[services.SpotifyAlbum], error)
	AlbumTracks(ctx context.Context, uri string) (*services.Page[services.SpotifyTrack], error)
}

// AggregatorOpts configures a [ReleaseAggregator]. Zero values take the package defaults.
type AggregatorOpts struct {
	Source        ReleaseSource
	Logger        *log.Logger
	Now           func() time.Time
	Market        string
	IncludeGroups string
	WindowDays    int
	PageLimit     int
}

// ReleaseAggregator discovers recent releases from the artists a user follows.
//
// Each stage follows the provider's next links until exhausted, requests are issued one at a
// time, and output order is the order pages arrive in. Any failed fetch aborts the stage.
type ReleaseAggregator struct {
	source        ReleaseSource
	logger        *log.Logger
	now           func() time.Time
	market        string
	includeGroups string
	windowDays    int
	pageLimit     int
}

// NewReleaseAggregator creates a [ReleaseAggregator] from opts.
func NewReleaseAggregator(opts AggregatorOpts) *ReleaseAggregator {
	a := &ReleaseAggregator{
		source:        opts.Source,
		logger:        opts.Logger,
		now:           opts.Now,
		market:        opts.Market,
		includeGroups: opts.IncludeGroups,
		windowDays:    opts.WindowDays,
		pageLimit:     opts.PageLimit,
	}
	if a.logger == nil {
		a.logger = shared.NewLogger(nil)
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.market == "" {
		a.market = DefaultMarket
	}
	if a.includeGroups == "" {
		a.includeGroups = DefaultIncludeGroups
	}
	if a.windowDays <= 0 {
		a.windowDays = DefaultWindowDays
	}
	if a.pageLimit <= 0 {
		a.pageLimit = DefaultPageLimit
	}
	return a
}

// Aggregation is the output of all three discovery stages.
type Aggregation struct {
	Artists []string       // followed artist IDs in page order
	Albums  []models.Album // releases inside the window after deduplication
	Tracks  []string       // track URIs in album order
}

// Aggregate runs artist, album and track discovery in sequence.
func (a *ReleaseAggregator) Aggregate(ctx context.Context, progress chan<- ProgressUpdate) (*Aggregation, error) {
	artists, err := a.artists(ctx, progress)
	if err != nil {
		return nil, err
	}
	albums, err := a.albums(ctx, artists, progress)
	if err != nil {
		return nil, err
	}
	tracks, err := a.tracks(ctx, albums, progress)
	if err != nil {
		return nil, err
	}
	return &Aggregation{Artists: artists, Albums: albums, Tracks: tracks}, nil
}

// Artists returns the IDs of every followed artist.
func (a *ReleaseAggregator) Artists(ctx context.Context) ([]string, error) {
	return a.artists(ctx, nil)
}

// Albums returns the releases of artistIDs that fall inside the window, deduplicated by name and primary artist.
func (a *ReleaseAggregator) Albums(ctx context.Context, artistIDs []string) ([]models.Album, error) {
	return a.albums(ctx, artistIDs, nil)
}

// Tracks returns the track URIs of albums, preserving album order and per-album track order.
func (a *ReleaseAggregator) Tracks(ctx context.Context, albums []models.Album) ([]string, error) {
	return a.tracks(ctx, albums, nil)
}

// Cutoff returns the exclusive lower bound on release dates: midnight of the day windowDays before now.
func (a *ReleaseAggregator) Cutoff() time.Time {
	y, m, d := a.now().AddDate(0, 0, -a.windowDays).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a *ReleaseAggregator) artists(ctx context.Context, progress chan<- ProgressUpdate) ([]string, error) {
	var ids []string
	uri := services.FollowedArtistsURI(a.pageLimit)

	for page := 1; uri != ""; page++ {
		sendProgress(progress, artistPageUpdate(page, len(ids)))

		p, err := a.source.FollowedArtists(ctx, uri)
		if err != nil {
			return nil, err
		}
		for _, artist := range p.Items {
			ids = append(ids, artist.ID)
		}
		uri = p.NextURL()
	}

	a.logger.Info("retrieved artist IDs", "count", len(ids))
	return ids, nil
}

type releaseKey struct {
	name   string
	artist string
}

func (a *ReleaseAggregator) albums(ctx context.Context, artistIDs []string, progress chan<- ProgressUpdate) ([]models.Album, error) {
	cutoff := a.Cutoff()
	seen := make(map[releaseKey]struct{})

	var albums []models.Album
	for i, artistID := range artistIDs {
		sendProgress(progress, artistAlbumsUpdate(i+1, len(artistIDs), artistID))

		uri := services.ArtistAlbumsURI(artistID, a.includeGroups, a.market, a.pageLimit)
		for uri != "" {
			p, err := a.source.ArtistAlbums(ctx, uri)
			if err != nil {
				return nil, err
			}

			for _, item := range p.Items {
				released, err := time.Parse(models.ReleaseDateLayout, item.ReleaseDate)
				if err != nil {
					a.logger.Warn("skipping release with unsupported date", "album", item.Name, "release_date", item.ReleaseDate)
					continue
				}
				if !released.After(cutoff) {
					continue
				}

				key := releaseKey{name: item.Name, artist: item.PrimaryArtist()}
				if _, dup := seen[key]; dup {
					a.logger.Debug("skipping duplicate release", "album", item.Name, "artist", key.artist)
					continue
				}
				seen[key] = struct{}{}

				albums = append(albums, models.Album{
					ID:          item.ID,
					Name:        item.Name,
					Artist:      key.artist,
					ReleaseDate: released,
				})
			}
			uri = p.NextURL()
		}
	}

	a.logger.Info("retrieved album IDs", "count", len(albums), "cutoff", cutoff.Format(models.ReleaseDateLayout))
	return albums, nil
}

func (a *ReleaseAggregator) tracks(ctx context.Context, albums []models.Album, progress chan<- ProgressUpdate) ([]string, error) {
	var uris []string
	for i, album := range albums {
		sendProgress(progress, albumTracksUpdate(i+1, len(albums), album))

		uri := services.AlbumTracksURI(album.ID, a.pageLimit)
		for uri != "" {
			p, err := a.source.AlbumTracks(ctx, uri)
			if err != nil {
				return nil, err
			}
			for _, track := range p.Items {
				uris = append(uris, track.URI)
			}
			uri = p.NextURL()
		}
	}

	a.logger.Info("retrieved tracks", "count", len(uris))
	return uris, nil
}
