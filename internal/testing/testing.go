// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Request is an HTTP request captured by [FakeSpotify].
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   []byte
}

// Album describes a release served by [FakeSpotify].
type Album struct {
	ID          string
	Name        string
	Artist      string
	ReleaseDate string
	Tracks      []string // track URIs
}

// Catalog is the account state behind [FakeSpotify].
type Catalog struct {
	UserID      string
	ArtistPages [][]string         // followed artist IDs, one slice per page
	Albums      map[string][]Album // keyed by artist ID
}

// FakeSpotify is an httptest server speaking the subset of the accounts and Web API used by nrx.
//
// Access tokens are opaque counters ("access-1", "access-2", ...). API calls carrying a token
// that is not current are rejected with 401.
type FakeSpotify struct {
	*httptest.Server

	mu           sync.Mutex
	catalog      Catalog
	requests     []Request
	tokenSeq     int
	current      string
	refresh      string
	expiresIn    int
	tokenStatus  int
	failures     map[string]int // path -> status returned once per remaining count
	failureCount map[string]int
	added        map[string][][]string
}

// NewFakeSpotify starts a fake provider and registers its shutdown with t.Cleanup.
func NewFakeSpotify(t *testing.T, catalog Catalog) *FakeSpotify {
	t.Helper()

	if catalog.UserID == "" {
		catalog.UserID = "listener"
	}
	f := &FakeSpotify{
		catalog:      catalog,
		refresh:      "refresh-1",
		expiresIn:    3600,
		failures:     map[string]int{},
		failureCount: map[string]int{},
		added:        map[string][][]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.token)
	mux.HandleFunc("GET /v1/me", f.authed(f.me))
	mux.HandleFunc("GET /v1/me/following", f.authed(f.following))
	mux.HandleFunc("GET /v1/artists/{id}/albums", f.authed(f.albums))
	mux.HandleFunc("GET /v1/albums/{id}/tracks", f.authed(f.tracks))
	mux.HandleFunc("POST /v1/users/{user}/playlists", f.authed(f.createPlaylist))
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", f.authed(f.addTracks))

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// TokenURL is the fake token endpoint.
func (f *FakeSpotify) TokenURL() string { return f.URL + "/api/token" }

// AuthURL is the fake authorization page.
func (f *FakeSpotify) AuthURL() string { return f.URL + "/authorize" }

// APIURL is the fake Web API base URL.
func (f *FakeSpotify) APIURL() string { return f.URL + "/v1" }

// SetExpiresIn changes the expires_in value handed out by subsequent grants.
func (f *FakeSpotify) SetExpiresIn(seconds int) {
	f.mu.Lock()
	f.expiresIn = seconds
	f.mu.Unlock()
}

// SetTokenStatus makes the token endpoint fail with status (0 restores success).
func (f *FakeSpotify) SetTokenStatus(status int) {
	f.mu.Lock()
	f.tokenStatus = status
	f.mu.Unlock()
}

// RevokeAccessToken invalidates the current access token server-side only.
func (f *FakeSpotify) RevokeAccessToken() {
	f.mu.Lock()
	f.current = ""
	f.mu.Unlock()
}

// FailNext makes the next n requests to path respond with status.
func (f *FakeSpotify) FailNext(path string, status, n int) {
	f.mu.Lock()
	f.failures[path] = status
	f.failureCount[path] = n
	f.mu.Unlock()
}

// Requests returns a copy of every request received so far.
func (f *FakeSpotify) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// Count returns how many requests matched method and path prefix.
func (f *FakeSpotify) Count(method, pathPrefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// Grants counts token endpoint calls with the given grant_type.
func (f *FakeSpotify) Grants(grantType string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Path != "/api/token" {
			continue
		}
		form, _ := url.ParseQuery(string(r.Body))
		if form.Get("grant_type") == grantType {
			n++
		}
	}
	return n
}

// Added returns the URI batches posted to a playlist, in arrival order.
func (f *FakeSpotify) Added(playlistID string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.added[playlistID]...)
}

func (f *FakeSpotify) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		status, remaining := f.failures[r.URL.Path], f.failureCount[r.URL.Path]
		if remaining > 0 {
			f.failureCount[r.URL.Path] = remaining - 1
		}
		f.mu.Unlock()

		if remaining > 0 {
			WriteJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "injected"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := f.current != "" && r.Header.Get("Authorization") == "Bearer "+f.current
		f.mu.Unlock()

		if !ok {
			WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "The access token expired"}})
			return
		}
		h(w, r)
	}
}

func (f *FakeSpotify) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tokenStatus != 0 {
		WriteJSON(w, f.tokenStatus, map[string]string{"error": "invalid_grant"})
		return
	}
	if r.PostForm.Get("client_id") == "" || r.PostForm.Get("client_secret") == "" {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	resp := map[string]any{"token_type": "Bearer", "expires_in": f.expiresIn}
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") == "" || r.PostForm.Get("redirect_uri") == "" {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp["refresh_token"] = f.refresh
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != f.refresh {
			WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
	default:
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	f.tokenSeq++
	f.current = fmt.Sprintf("access-%d", f.tokenSeq)
	resp["access_token"] = f.current
	WriteJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) me(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"id": f.catalog.UserID, "display_name": "Listener"})
}

func (f *FakeSpotify) following(w http.ResponseWriter, r *http.Request) {
	page := 0
	if after := r.URL.Query().Get("after"); after != "" {
		fmt.Sscanf(after, "%d", &page)
	}

	items := []map[string]any{}
	var next any
	if page < len(f.catalog.ArtistPages) {
		for _, id := range f.catalog.ArtistPages[page] {
			items = append(items, map[string]any{"id": id, "name": "Artist " + id})
		}
		if page+1 < len(f.catalog.ArtistPages) {
			next = fmt.Sprintf("%s/v1/me/following?type=artist&after=%d", f.URL, page+1)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"artists": map[string]any{"items": items, "next": next},
	})
}

func (f *FakeSpotify) albums(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	for _, a := range f.catalog.Albums[r.PathValue("id")] {
		items = append(items, map[string]any{
			"id":           a.ID,
			"name":         a.Name,
			"release_date": a.ReleaseDate,
			"artists":      []map[string]any{{"name": a.Artist}},
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items, "next": nil})
}

func (f *FakeSpotify) tracks(w http.ResponseWriter, r *http.Request) {
	items := []map[string]any{}
	if a, ok := f.findAlbum(r.PathValue("id")); ok {
		for _, uri := range a.Tracks {
			items = append(items, map[string]any{"uri": uri})
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items, "next": nil})
}

func (f *FakeSpotify) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "missing name"})
		return
	}

	id := "pl-" + r.PathValue("user")
	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":            id,
		"name":          body.Name,
		"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/" + id},
	})
}

func (f *FakeSpotify) addTracks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if len(body.URIs) > 100 {
		WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "too many uris"})
		return
	}

	f.mu.Lock()
	id := r.PathValue("id")
	f.added[id] = append(f.added[id], body.URIs)
	f.mu.Unlock()

	WriteJSON(w, http.StatusCreated, map[string]string{"snapshot_id": "snap"})
}

func (f *FakeSpotify) findAlbum(id string) (Album, bool) {
	for _, albums := range f.catalog.Albums {
		for _, a := range albums {
			if a.ID == id {
				return a, true
			}
		}
	}
	return Album{}, false
}
