// Package web serves the browser entry point for nrx.
//
// Routes
//
//	GET /         landing page with the last error and recent runs
//	GET /login    redirect to the Spotify authorization page with a state cookie
//	GET /callback validate state, run the pipeline, redirect to the new playlist
//	GET /healthz  liveness probe
//
// Every callback builds its own [tasks.Session], so tokens are never shared between
// visitors. A failed run redirects back to / with ?error=<kind>.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/server"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

const (
	StateCookie = "nrx_state"
	stateMaxAge = 10 * time.Minute
	recentRuns  = 5
)

// SessionFactory builds a fresh session for one sign-in.
type SessionFactory func() *tasks.Session

// HistoryReader lists recorded runs. Implemented by repositories.RunRepository.
type HistoryReader interface {
	List(ctx context.Context, criteria map[string]any) ([]*models.Run, error)
}

// Options configures an [App].
type Options struct {
	Config     *shared.Config
	NewSession SessionFactory
	History    HistoryReader // optional
	Logger     *log.Logger
	Once       bool // close [App.Done] after the first completed callback
}

// App is the web front-end.
type App struct {
	router       chi.Router
	cfg          *shared.Config
	newSession   SessionFactory
	history      HistoryReader
	logger       *log.Logger
	callbackPath string
	once         bool
	done         chan struct{}
	closeOnce    sync.Once
}

// New creates an [App] with routes and middleware registered.
func New(opts Options) *App {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}

	a := &App{
		cfg:          opts.Config,
		newSession:   opts.NewSession,
		history:      opts.History,
		logger:       opts.Logger,
		callbackPath: callbackPath(opts.Config.Credentials.Spotify.RedirectURI),
		once:         opts.Once,
		done:         make(chan struct{}),
	}

	r := chi.NewRouter()
	for _, mw := range server.Defaults(opts.Logger) {
		r.Use(mw)
	}
	r.Get("/", a.index)
	r.Get("/login", a.login)
	r.Get(a.callbackPath, a.callback)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	a.router = r
	return a
}

func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Done is closed after the first completed callback when [Options.Once] is set.
func (a *App) Done() <-chan struct{} {
	return a.done
}

type indexData struct {
	WindowDays int
	Error      string
	Runs       []*models.Run
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		WindowDays: a.cfg.Aggregator.WindowDays,
		Error:      ErrorMessage(r.URL.Query().Get("error")),
	}
	if data.WindowDays <= 0 {
		data.WindowDays = tasks.DefaultWindowDays
	}

	if a.history != nil {
		runs, err := a.history.List(r.Context(), map[string]any{"limit": recentRuns})
		if err != nil {
			a.logger.Warn("failed to load run history", "error", err)
		}
		data.Runs = runs
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "index.html", data); err != nil {
		a.logger.Error("failed to render index", "error", err)
	}
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		a.logger.Error("failed to generate state", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	session := a.newSession()
	http.Redirect(w, r, session.Auth.AuthURL(state), http.StatusFound)
}

func (a *App) callback(w http.ResponseWriter, r *http.Request) {
	// state is single use whatever the outcome
	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/", MaxAge: -1})

	cookie, err := r.Cookie(StateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		a.logger.Warn("rejected callback with invalid state")
		a.fail(w, r, "invalid_state")
		return
	}

	session := a.newSession()
	res, err := session.Pipeline.Run(r.Context(), r.URL.Query().Get("code"), nil)
	a.finish()
	if err != nil {
		a.logger.Error("pipeline failed", "error", err, "kind", shared.ErrorKind(err))
		a.fail(w, r, shared.ErrorKind(err))
		return
	}

	a.logger.Info("playlist ready", "url", res.Playlist.URL, "tracks", len(res.Tracks))
	http.Redirect(w, r, res.Playlist.URL, http.StatusFound)
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, kind string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(kind), http.StatusFound)
}

func (a *App) finish() {
	if !a.once {
		return
	}
	a.closeOnce.Do(func() { close(a.done) })
}

// ErrorMessage turns an error kind from the query string into text for the landing page.
func ErrorMessage(kind string) string {
	switch kind {
	case "":
		return ""
	case "invalid_state":
		return "The sign-in link expired or was opened in another browser. Please try again."
	case "missing_code":
		return "Spotify did not return an authorization code. Did you cancel the sign-in?"
	case "exchange_failed":
		return "Spotify rejected the sign-in. Check the client credentials and redirect URI."
	case "session_expired":
		return "Your Spotify session expired. Please sign in again."
	default:
		return "Something went wrong while building your playlist (" + kind + ")."
	}
}

func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/callback"
	}
	return u.Path
}
