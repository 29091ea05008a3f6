package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/shared"
	tu "github.com/desertthunder/nrx/internal/testing"
)

func newTestManager(t *testing.T, fake *tu.FakeSpotify, clock *fakeClock) *Manager {
	t.Helper()
	return NewManager(Options{
		Credentials: shared.SpotifyConfig{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "http://127.0.0.1:3000/callback",
		},
		AuthURL:    fake.AuthURL(),
		TokenURL:   fake.TokenURL(),
		HTTPClient: fake.Client(),
		Logger:     log.New(io.Discard),
		Now:        clock.Now,
	})
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthURL", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, tu.Catalog{})
		m := newTestManager(t, fake, newFakeClock())

		u, err := url.Parse(m.AuthURL("xyz"))
		if err != nil {
			t.Fatalf("invalid auth url: %v", err)
		}
		q := u.Query()
		if q.Get("client_id") != "client" || q.Get("state") != "xyz" || q.Get("response_type") != "code" {
			t.Errorf("unexpected auth url query: %v", q)
		}
		if q.Get("redirect_uri") != "http://127.0.0.1:3000/callback" {
			t.Errorf("unexpected redirect_uri %s", q.Get("redirect_uri"))
		}
		if !strings.Contains(q.Get("scope"), "user-follow-read") {
			t.Errorf("expected default scopes, got %s", q.Get("scope"))
		}
	})

	t.Run("ExchangeCode", func(t *testing.T) {
		t.Run("stores both tokens", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())

			if m.State() != Unauthenticated {
				t.Fatalf("expected unauthenticated, got %s", m.State())
			}
			if err := m.ExchangeCode(ctx, "code-123"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.State() != Authenticated {
				t.Errorf("expected authenticated, got %s", m.State())
			}
			if v, ok := m.store.Get(AccessTokenKey); !ok || v != "access-1" {
				t.Errorf("expected access-1 stored, got %q", v)
			}
			if v, ok := m.store.Get(RefreshTokenKey); !ok || v != "refresh-1" {
				t.Errorf("expected refresh-1 stored, got %q", v)
			}

			reqs := fake.Requests()
			form, _ := url.ParseQuery(string(reqs[0].Body))
			for key, want := range map[string]string{
				"grant_type":    "authorization_code",
				"code":          "code-123",
				"redirect_uri":  "http://127.0.0.1:3000/callback",
				"client_id":     "client",
				"client_secret": "secret",
			} {
				if form.Get(key) != want {
					t.Errorf("expected form %s=%s, got %s", key, want, form.Get(key))
				}
			}
		})

		t.Run("empty code", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())

			for _, code := range []string{"", "   "} {
				err := m.ExchangeCode(ctx, code)
				if !errors.Is(err, shared.ErrMissingCode) {
					t.Errorf("expected missing code, got %v", err)
				}
			}
			if len(fake.Requests()) != 0 {
				t.Error("no request should be sent without a code")
			}
		})

		t.Run("non-success status", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			fake.SetTokenStatus(http.StatusBadRequest)
			m := newTestManager(t, fake, newFakeClock())

			err := m.ExchangeCode(ctx, "used-code")
			var authErr *shared.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Kind != shared.ExchangeFailed || authErr.Status != http.StatusBadRequest {
				t.Errorf("expected ExchangeFailed{400}, got %+v", authErr)
			}
			if fake.Grants("authorization_code") != 1 {
				t.Errorf("exchange must not be retried, got %d calls", fake.Grants("authorization_code"))
			}
			if m.State() != Unauthenticated {
				t.Errorf("state should not change on failure, got %s", m.State())
			}
		})
	})

	t.Run("AccessToken", func(t *testing.T) {
		t.Run("returns cached token", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}

			tok, err := m.AccessToken(ctx)
			if err != nil || tok != "access-1" {
				t.Fatalf("expected access-1, got %q %v", tok, err)
			}
			if fake.Grants("refresh_token") != 0 {
				t.Error("unexpected refresh")
			}
		})

		t.Run("refreshes after expires_in", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			fake.SetExpiresIn(60)
			clock := newFakeClock()
			m := newTestManager(t, fake, clock)
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}

			clock.Advance(59 * time.Second)
			if tok, _ := m.AccessToken(ctx); tok != "access-1" {
				t.Errorf("expected cached token before expiry, got %s", tok)
			}

			clock.Advance(time.Second)
			tok, err := m.AccessToken(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok != "access-2" {
				t.Errorf("expected refreshed token access-2, got %s", tok)
			}
			if fake.Grants("refresh_token") != 1 {
				t.Errorf("expected one refresh, got %d", fake.Grants("refresh_token"))
			}
			if m.State() != Authenticated {
				t.Errorf("expected authenticated after refresh, got %s", m.State())
			}
			if v, _ := m.store.Get(RefreshTokenKey); v != "refresh-1" {
				t.Errorf("refresh token should be kept when not rotated, got %s", v)
			}
		})

		t.Run("no refresh token means session expired", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())

			_, err := m.AccessToken(ctx)
			if !errors.Is(err, shared.ErrSessionExpired) {
				t.Fatalf("expected session expired, got %v", err)
			}
			if m.State() != LoggedOut {
				t.Errorf("expected logged out, got %s", m.State())
			}
			if len(fake.Requests()) != 0 {
				t.Error("no request should be sent without a refresh token")
			}
		})

		t.Run("refresh failure surfaces exchange status", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			fake.SetExpiresIn(1)
			clock := newFakeClock()
			m := newTestManager(t, fake, clock)
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}

			clock.Advance(time.Second)
			fake.SetTokenStatus(http.StatusServiceUnavailable)

			_, err := m.AccessToken(ctx)
			if !errors.Is(err, &shared.AuthError{Kind: shared.ExchangeFailed, Status: http.StatusServiceUnavailable}) {
				t.Fatalf("expected ExchangeFailed{503}, got %v", err)
			}
			if m.State() != Expired {
				t.Errorf("expected expired state after failed refresh, got %s", m.State())
			}
		})

		t.Run("concurrent callers share one refresh", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			fake.SetExpiresIn(1)
			clock := newFakeClock()
			m := newTestManager(t, fake, clock)
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}
			fake.SetExpiresIn(3600)
			clock.Advance(time.Second)

			var wg sync.WaitGroup
			tokens := make([]string, 20)
			for i := range tokens {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					tokens[i], _ = m.AccessToken(ctx)
				}(i)
			}
			wg.Wait()

			if fake.Grants("refresh_token") != 1 {
				t.Errorf("expected a single refresh grant, got %d", fake.Grants("refresh_token"))
			}
			for _, tok := range tokens {
				if tok != "access-2" {
					t.Errorf("expected every caller to get access-2, got %q", tok)
				}
			}
		})
	})

	t.Run("AuthHeader", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, tu.Catalog{})
		m := newTestManager(t, fake, newFakeClock())
		if err := m.ExchangeCode(ctx, "code"); err != nil {
			t.Fatalf("exchange failed: %v", err)
		}

		h1, err := m.AuthHeader(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h1.Get("Authorization") != "Bearer access-1" {
			t.Errorf("unexpected header %v", h1)
		}

		h1.Set("Authorization", "tampered")
		h2, _ := m.AuthHeader(ctx)
		if h2.Get("Authorization") != "Bearer access-1" {
			t.Error("headers must not be shared between calls")
		}
	})

	t.Run("RefreshAuthHeader", func(t *testing.T) {
		t.Run("replaces rejected token", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}

			rejected, _ := m.AuthHeader(ctx)
			h, err := m.RefreshAuthHeader(ctx, rejected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.Get("Authorization") != "Bearer access-2" {
				t.Errorf("expected refreshed header, got %s", h.Get("Authorization"))
			}
			if fake.Grants("refresh_token") != 1 {
				t.Errorf("expected one refresh, got %d", fake.Grants("refresh_token"))
			}
		})

		t.Run("keeps token already replaced", func(t *testing.T) {
			fake := tu.NewFakeSpotify(t, tu.Catalog{})
			m := newTestManager(t, fake, newFakeClock())
			if err := m.ExchangeCode(ctx, "code"); err != nil {
				t.Fatalf("exchange failed: %v", err)
			}

			stale := http.Header{}
			stale.Set("Authorization", "Bearer access-0")
			h, err := m.RefreshAuthHeader(ctx, stale)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.Get("Authorization") != "Bearer access-1" {
				t.Errorf("expected current header, got %s", h.Get("Authorization"))
			}
			if fake.Grants("refresh_token") != 0 {
				t.Error("stale rejection should not trigger a refresh")
			}
		})
	})

	t.Run("Logout", func(t *testing.T) {
		fake := tu.NewFakeSpotify(t, tu.Catalog{})
		m := newTestManager(t, fake, newFakeClock())
		if err := m.ExchangeCode(ctx, "code"); err != nil {
			t.Fatalf("exchange failed: %v", err)
		}

		m.Logout()
		if m.State() != LoggedOut {
			t.Errorf("expected logged out, got %s", m.State())
		}
		if _, err := m.AccessToken(ctx); !errors.Is(err, shared.ErrSessionExpired) {
			t.Errorf("expected session expired after logout, got %v", err)
		}

		if err := m.ExchangeCode(ctx, "again"); err != nil {
			t.Fatalf("exchange after logout failed: %v", err)
		}
		if m.State() != Authenticated {
			t.Errorf("expected authenticated after new exchange, got %s", m.State())
		}
	})
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		Unauthenticated: "unauthenticated",
		Authenticated:   "authenticated",
		Expired:         "expired",
		LoggedOut:       "logged_out",
	} {
		if state.String() != want {
			t.Errorf("State(%d).String() = %s, want %s", state, state.String(), want)
		}
	}
}
