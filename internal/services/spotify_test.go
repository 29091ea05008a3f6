package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/auth"
	"github.com/desertthunder/nrx/internal/shared"
	tu "github.com/desertthunder/nrx/internal/testing"
)

func newFakeService(t *testing.T, catalog tu.Catalog) (*SpotifyService, *auth.Manager, *tu.FakeSpotify) {
	t.Helper()
	fake := tu.NewFakeSpotify(t, catalog)
	logger := log.New(io.Discard)

	m := auth.NewManager(auth.Options{
		Credentials: shared.SpotifyConfig{ClientID: "client", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:3000/callback"},
		AuthURL:     fake.AuthURL(),
		TokenURL:    fake.TokenURL(),
		HTTPClient:  fake.Client(),
		Logger:      logger,
	})
	if err := m.ExchangeCode(context.Background(), "code"); err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	e := NewExecutor(ExecutorOpts{BaseURL: fake.APIURL(), HTTPClient: fake.Client(), Headers: m, Logger: logger})
	return NewSpotifyService(e), m, fake
}

func TestEndpoints(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"followed artists", FollowedArtistsURI(50), "/me/following?limit=50&type=artist"},
		{"followed artists without limit", FollowedArtistsURI(0), "/me/following?type=artist"},
		{"artist albums", ArtistAlbumsURI("a1", "album,single", "US", 50), "/artists/a1/albums?include_groups=album%2Csingle&limit=50&market=US"},
		{"album tracks", AlbumTracksURI("x/y", 50), "/albums/x%2Fy/tracks?limit=50"},
		{"create playlist", CreatePlaylistURI("listener"), "/users/listener/playlists"},
		{"add tracks", AddTracksURI("pl-1"), "/playlists/pl-1/tracks"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, tc.got)
			}
		})
	}
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()
	catalog := tu.Catalog{
		UserID:      "listener",
		ArtistPages: [][]string{{"a1", "a2"}, {"a3"}},
		Albums: map[string][]tu.Album{
			"a1": {{ID: "al1", Name: "First", Artist: "One", ReleaseDate: "2026-10-01", Tracks: []string{"spotify:track:1", "spotify:track:2"}}},
		},
	}

	t.Run("CurrentUser", func(t *testing.T) {
		svc, _, _ := newFakeService(t, catalog)
		user, err := svc.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != "listener" {
			t.Errorf("expected listener, got %s", user.ID)
		}
	})

	t.Run("FollowedArtists follows next", func(t *testing.T) {
		svc, _, _ := newFakeService(t, catalog)

		page, err := svc.FollowedArtists(ctx, FollowedArtistsURI(50))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 2 || page.NextURL() == "" {
			t.Fatalf("unexpected first page: %+v", page)
		}

		page, err = svc.FollowedArtists(ctx, page.NextURL())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].ID != "a3" || page.NextURL() != "" {
			t.Errorf("unexpected last page: %+v", page)
		}
	})

	t.Run("ArtistAlbums", func(t *testing.T) {
		svc, _, _ := newFakeService(t, catalog)
		page, err := svc.ArtistAlbums(ctx, ArtistAlbumsURI("a1", "album,single", "US", 50))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].PrimaryArtist() != "One" || page.Items[0].ReleaseDate != "2026-10-01" {
			t.Errorf("unexpected albums: %+v", page.Items)
		}
	})

	t.Run("AlbumTracks", func(t *testing.T) {
		svc, _, _ := newFakeService(t, catalog)
		page, err := svc.AlbumTracks(ctx, AlbumTracksURI("al1", 50))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 2 || page.Items[1].URI != "spotify:track:2" {
			t.Errorf("unexpected tracks: %+v", page.Items)
		}
	})

	t.Run("CreatePlaylist and AddTracks", func(t *testing.T) {
		svc, _, fake := newFakeService(t, catalog)
		pl, err := svc.CreatePlaylist(ctx, "listener", CreatePlaylistRequest{Name: "Mix", Public: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pl.ID != "pl-listener" || pl.URL() != "https://open.spotify.com/playlist/pl-listener" {
			t.Errorf("unexpected playlist: %+v", pl)
		}

		if _, err := svc.AddTracks(ctx, pl.ID, []string{"spotify:track:1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if added := fake.Added(pl.ID); len(added) != 1 || added[0][0] != "spotify:track:1" {
			t.Errorf("unexpected batches: %v", added)
		}
	})

	t.Run("revoked token is refreshed once", func(t *testing.T) {
		svc, _, fake := newFakeService(t, catalog)
		fake.RevokeAccessToken()

		if _, err := svc.CurrentUser(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := fake.Grants("refresh_token"); n != 1 {
			t.Errorf("expected 1 refresh grant, got %d", n)
		}
		if n := fake.Count(http.MethodGet, "/v1/me"); n != 2 {
			t.Errorf("expected 2 profile requests, got %d", n)
		}
	})

	t.Run("forbidden is surfaced without refresh", func(t *testing.T) {
		svc, _, fake := newFakeService(t, catalog)
		fake.FailNext("/v1/me", http.StatusForbidden, 1)

		_, err := svc.CurrentUser(ctx)
		if !errors.Is(err, &shared.RequestError{Status: http.StatusForbidden}) {
			t.Errorf("expected 403 RequestError, got %v", err)
		}
		if n := fake.Grants("refresh_token"); n != 0 {
			t.Errorf("expected no refresh grant, got %d", n)
		}
	})

	t.Run("query reaches the provider", func(t *testing.T) {
		svc, _, fake := newFakeService(t, catalog)
		if _, err := svc.ArtistAlbums(ctx, ArtistAlbumsURI("a1", "album,single", "US", 50)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var q url.Values
		for _, r := range fake.Requests() {
			if r.Path == "/v1/artists/a1/albums" {
				q = r.Query
			}
		}
		if q.Get("include_groups") != "album,single" || q.Get("market") != "US" {
			t.Errorf("unexpected query %v", q)
		}
	})
}
