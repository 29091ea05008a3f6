// Spotify Web API response types and endpoints
//
// Types follow https://developer.spotify.com/documentation/web-api/reference/ and carry only the
// fields the release pipeline reads.
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/nrx/internal/shared"
)

const SpotifyBaseURL = "https://api.spotify.com/v1"

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified album as returned by the artist albums endpoint.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"`
	Artists              []SpotifyArtist `json:"artists"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	URI                  string          `json:"uri"`
}

// PrimaryArtist returns the name of the first credited artist, or an empty string.
func (a SpotifyAlbum) PrimaryArtist() string {
	if len(a.Artists) == 0 {
		return ""
	}
	return a.Artists[0].Name
}

// SpotifyTrack represents a simplified track within an album.
type SpotifyTrack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TrackNumber int    `json:"track_number"`
	URI         string `json:"uri"`
}

// Page is a Spotify paging object. Next is nil on the last page.
type Page[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Limit int     `json:"limit"`
	Next  *string `json:"next"`
}

// NextURL returns the absolute URL of the following page, or an empty string.
func (p Page[T]) NextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}

// FollowedArtistsResponse wraps the cursor-paged artists object of /me/following.
type FollowedArtistsResponse struct {
	Artists Page[SpotifyArtist] `json:"artists"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyPlaylist is the subset of a created playlist the writer needs.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Public       bool         `json:"public"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// URL returns the playlist's public web link.
func (p SpotifyPlaylist) URL() string {
	return p.ExternalURLs.Spotify
}

// CreatePlaylistRequest is the body of POST /users/{user_id}/playlists.
type CreatePlaylistRequest struct {
	Name        string `json:"name"`
	Public      bool   `json:"public"`
	Description string `json:"description,omitempty"`
}

// AddTracksRequest is the body of POST /playlists/{playlist_id}/tracks.
type AddTracksRequest struct {
	URIs []string `json:"uris"`
}

// SnapshotResponse is returned by playlist mutation endpoints.
type SnapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// CurrentUserURI is the profile endpoint for the signed-in user.
const CurrentUserURI = "/me"

// FollowedArtistsURI returns the first page of the signed-in user's followed artists.
func FollowedArtistsURI(limit int) string {
	q := url.Values{}
	q.Set("type", "artist")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return "/me/following?" + q.Encode()
}

// ArtistAlbumsURI returns the first page of an artist's releases restricted to includeGroups in market.
func ArtistAlbumsURI(artistID, includeGroups, market string, limit int) string {
	q := url.Values{}
	if includeGroups != "" {
		q.Set("include_groups", includeGroups)
	}
	if market != "" {
		q.Set("market", market)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return fmt.Sprintf("/artists/%s/albums?%s", url.PathEscape(artistID), q.Encode())
}

// AlbumTracksURI returns the first page of an album's tracks.
func AlbumTracksURI(albumID string, limit int) string {
	u := fmt.Sprintf("/albums/%s/tracks", url.PathEscape(albumID))
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	return u
}

func CreatePlaylistURI(userID string) string {
	return fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
}

func AddTracksURI(playlistID string) string {
	return fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
}

// SpotifyService exposes typed Web API calls over a [Requester].
//
// Paged calls return a single page; callers follow [Page.NextURL] themselves.
type SpotifyService struct {
	r Requester
}

// NewSpotifyService wraps r.
func NewSpotifyService(r Requester) *SpotifyService {
	return &SpotifyService{r: r}
}

// CurrentUser fetches the signed-in user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.r.GetJSON(ctx, CurrentUserURI, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FollowedArtists fetches one page of followed artists from uri.
func (s *SpotifyService) FollowedArtists(ctx context.Context, uri string) (*Page[SpotifyArtist], error) {
	var resp FollowedArtistsResponse
	if err := s.r.GetJSON(ctx, uri, &resp); err != nil {
		return nil, err
	}
	return &resp.Artists, nil
}

// ArtistAlbums fetches one page of an artist's releases from uri.
func (s *SpotifyService) ArtistAlbums(ctx context.Context, uri string) (*Page[SpotifyAlbum], error) {
	var page Page[SpotifyAlbum]
	if err := s.r.GetJSON(ctx, uri, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AlbumTracks fetches one page of an album's tracks from uri.
func (s *SpotifyService) AlbumTracks(ctx context.Context, uri string) (*Page[SpotifyTrack], error) {
	var page Page[SpotifyTrack]
	if err := s.r.GetJSON(ctx, uri, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreatePlaylist creates a playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID string, req CreatePlaylistRequest) (*SpotifyPlaylist, error) {
	var pl SpotifyPlaylist
	if err := s.r.PostJSON(ctx, CreatePlaylistURI(userID), req, &pl); err != nil {
		return nil, err
	}
	if pl.ID == "" {
		return nil, fmt.Errorf("%w: playlist response has no id", shared.ErrDecodeResponse)
	}
	return &pl, nil
}

// AddTracks appends uris to a playlist in a single request.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) (*SnapshotResponse, error) {
	var snap SnapshotResponse
	if err := s.r.PostJSON(ctx, AddTracksURI(playlistID), AddTracksRequest{URIs: uris}, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
