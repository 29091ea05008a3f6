package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"

	// DefaultAccessTTL applies when the token endpoint omits expires_in.
	DefaultAccessTTL = time.Hour
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{
	"user-top-read",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-follow-read",
}

// State is the session's credential status.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Expired
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case LoggedOut:
		return "logged_out"
	default:
		return ""
	}
}

// Options configures a [Manager].
type Options struct {
	Credentials shared.SpotifyConfig
	AuthURL     string           // defaults to [SpotifyAuthURL]
	TokenURL    string           // defaults to [SpotifyTokenURL]
	HTTPClient  *http.Client     // used for token endpoint calls
	Logger      *log.Logger      //
	Now         func() time.Time // clock shared with the [TokenStore]
}

// Manager owns the authorization-code exchange and refresh grants for one session.
//
// It is the only writer of its [TokenStore]. Concurrent callers of [Manager.AccessToken]
// share a single in-flight refresh.
type Manager struct {
	oauth  *oauth2.Config
	store  *TokenStore
	client *http.Client
	logger *log.Logger
	now    func() time.Time
	flight singleflight.Group

	mu    sync.RWMutex
	state State
}

// NewManager creates a [Manager] in the [Unauthenticated] state.
func NewManager(opts Options) *Manager {
	if opts.AuthURL == "" {
		opts.AuthURL = SpotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = SpotifyTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	scopes := opts.Credentials.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     opts.Credentials.ClientID,
			ClientSecret: opts.Credentials.ClientSecret,
			RedirectURL:  opts.Credentials.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:  NewTokenStore(opts.Now),
		client: opts.HTTPClient,
		logger: opts.Logger,
		now:    opts.Now,
		state:  Unauthenticated,
	}
}

// AuthURL returns the provider authorization page URL carrying state.
func (m *Manager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// State reports the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// ExchangeCode trades a single-use authorization code for access and refresh tokens.
//
// It never retries: the code is consumed by the first request whatever its outcome.
func (m *Manager) ExchangeCode(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return &shared.AuthError{Kind: shared.MissingCode}
	}

	tok, err := m.oauth.Exchange(m.clientContext(ctx), code)
	if err != nil {
		return exchangeError(err)
	}

	m.store.Save(AccessTokenKey, tok.AccessToken, m.accessTTL(tok))
	if tok.RefreshToken != "" {
		m.store.Save(RefreshTokenKey, tok.RefreshToken, NoExpiry)
	}
	m.setState(Authenticated)
	m.logger.Info("completed authorization code exchange")
	return nil
}

// AccessToken returns a live access token, running the refresh grant when the cached one has expired.
//
// Without a refresh token the session is over: the manager moves to [LoggedOut] and
// returns a SessionExpired [shared.AuthError].
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if tok, ok := m.store.Get(AccessTokenKey); ok {
		return tok, nil
	}

	v, err, _ := m.flight.Do(AccessTokenKey, func() (any, error) {
		if tok, ok := m.store.Get(AccessTokenKey); ok {
			return tok, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	rt, ok := m.store.Get(RefreshTokenKey)
	if !ok {
		m.setState(LoggedOut)
		return "", &shared.AuthError{Kind: shared.SessionExpired}
	}

	m.setState(Expired)
	m.logger.Debug("access token expired, refreshing")

	tok, err := m.oauth.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		m.logger.Error("refresh grant failed", "error", err)
		return "", exchangeError(err)
	}

	if tok.RefreshToken != "" && tok.RefreshToken != rt {
		m.store.Save(RefreshTokenKey, tok.RefreshToken, NoExpiry)
	}
	m.store.Save(AccessTokenKey, tok.AccessToken, m.accessTTL(tok))
	m.setState(Authenticated)
	m.logger.Info("refreshed access token")
	return tok.AccessToken, nil
}

// AuthHeader returns a new bearer Authorization header for the current access token.
//
// Each call allocates its own [http.Header].
func (m *Manager) AuthHeader(ctx context.Context) (http.Header, error) {
	tok, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+tok)
	return h, nil
}

// RefreshAuthHeader discards the access token carried by rejected, if it is still the cached one,
// and returns a header built from a freshly refreshed token.
func (m *Manager) RefreshAuthHeader(ctx context.Context, rejected http.Header) (http.Header, error) {
	if tok, ok := strings.CutPrefix(rejected.Get("Authorization"), "Bearer "); ok {
		m.store.CompareAndDelete(AccessTokenKey, tok)
	}
	return m.AuthHeader(ctx)
}

// Logout clears every stored credential. The session stays [LoggedOut] until the next successful exchange.
func (m *Manager) Logout() {
	m.store.Clear()
	m.setState(LoggedOut)
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// accessTTL reads expires_in from the raw token response, falling back to the computed expiry.
func (m *Manager) accessTTL(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(m.now())
	}
	return DefaultAccessTTL
}

func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &shared.AuthError{Kind: shared.ExchangeFailed, Status: re.Response.StatusCode, Err: err}
	}
	return &shared.AuthError{Kind: shared.ExchangeFailed, Err: err}
}
