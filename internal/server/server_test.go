package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/shared"
)

func TestBasicRouter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("Handle filters method", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/x", ok)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected 418, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodGet {
			t.Errorf("unexpected Allow header %q", rec.Header().Get("Allow"))
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/x", ok)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Defaults log and recover", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewBasicRouter()
		r.Use(Defaults(log.New(&buf))...)
		r.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		r.Handle(http.MethodGet, "/ok", ok)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500 after panic, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if !strings.Contains(buf.String(), "/ok") || !strings.Contains(buf.String(), "418") {
			t.Errorf("expected request log line, got %q", buf.String())
		}
	})
}

func TestCodeHandler(t *testing.T) {
	serve := func(h *CodeHandler, target string) *httptest.ResponseRecorder {
		r := NewBasicRouter()
		r.Handler(h)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("delivers code", func(t *testing.T) {
		h := NewCodeHandler("", "s1")
		rec := serve(h, "/callback?state=s1&code=abc")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}

		res := <-h.Result()
		if res.Error() != nil || res.Code != "abc" {
			t.Errorf("unexpected result %+v", res)
		}
		if _, open := <-h.Result(); open {
			t.Error("expected channel to be closed")
		}
	})

	t.Run("invalid state", func(t *testing.T) {
		h := NewCodeHandler("/callback", "s1")
		rec := serve(h, "/callback?state=nope&code=abc")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); !errors.Is(res.Error(), shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", res.Error())
		}
	})

	t.Run("missing code", func(t *testing.T) {
		h := NewCodeHandler("/callback", "s1")
		serve(h, "/callback?state=s1&error=access_denied")
		res := <-h.Result()
		if !errors.Is(res.Error(), shared.ErrMissingCode) {
			t.Errorf("expected ErrMissingCode, got %v", res.Error())
		}
		if !strings.Contains(res.Error().Error(), "access_denied") {
			t.Errorf("expected provider error in message, got %v", res.Error())
		}
	})

	t.Run("only first callback is processed", func(t *testing.T) {
		h := NewCodeHandler("/callback", "s1")
		r := NewBasicRouter()
		r.Handler(h)

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=one", nil))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=two", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replay, got %d", rec.Code)
		}
		if res := <-h.Result(); res.Code != "one" {
			t.Errorf("expected first code, got %q", res.Code)
		}
	})
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeListener(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), log.New(&bytes.Buffer{}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
