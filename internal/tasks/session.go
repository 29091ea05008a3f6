package tasks

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/auth"
	"github.com/desertthunder/nrx/internal/services"
	"github.com/desertthunder/nrx/internal/shared"
)

// Endpoints overrides provider URLs. Empty fields use the production endpoints.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	APIURL   string
}

// SessionOpts configures [NewSession].
type SessionOpts struct {
	Config     *shared.Config
	Endpoints  Endpoints
	HTTPClient *http.Client
	Logger     *log.Logger
	Now        func() time.Time
	Recorder   RunRecorder
}

// Session wires one auth manager, executor and pipeline together.
//
// A session belongs to a single signed-in user and must not be shared between users.
type Session struct {
	Auth       *auth.Manager
	Spotify    *services.SpotifyService
	Aggregator *ReleaseAggregator
	Writer     *PlaylistWriter
	Pipeline   *Pipeline
}

// NewSession builds the component graph for one user session from opts.
func NewSession(opts SessionOpts) *Session {
	cfg := opts.Config
	if cfg == nil {
		cfg = &shared.Config{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	manager := auth.NewManager(auth.Options{
		Credentials: cfg.Credentials.Spotify,
		AuthURL:     opts.Endpoints.AuthURL,
		TokenURL:    opts.Endpoints.TokenURL,
		HTTPClient:  opts.HTTPClient,
		Logger:      opts.Logger.WithPrefix("auth"),
		Now:         opts.Now,
	})

	executor := services.NewExecutor(services.ExecutorOpts{
		BaseURL:           opts.Endpoints.APIURL,
		HTTPClient:        opts.HTTPClient,
		Headers:           manager,
		Logger:            opts.Logger.WithPrefix("http"),
		RequestsPerSecond: cfg.Aggregator.RequestsPerSecond,
	})
	spotify := services.NewSpotifyService(executor)

	aggregator := NewReleaseAggregator(AggregatorOpts{
		Source:        spotify,
		Logger:        opts.Logger.WithPrefix("aggregator"),
		Now:           opts.Now,
		Market:        cfg.Aggregator.Market,
		IncludeGroups: cfg.Aggregator.IncludeGroups,
		WindowDays:    cfg.Aggregator.WindowDays,
		PageLimit:     cfg.Aggregator.PageLimit,
	})

	writer := NewPlaylistWriter(WriterOpts{
		Sink:   spotify,
		Logger: opts.Logger.WithPrefix("writer"),
		Now:    opts.Now,
		Public: cfg.Aggregator.PlaylistPublic,
	})

	pipeline := NewPipeline(PipelineOpts{
		Auth:       manager,
		Aggregator: aggregator,
		Writer:     writer,
		Users:      spotify,
		UserID:     cfg.Credentials.Spotify.UserID,
		Recorder:   opts.Recorder,
		Logger:     opts.Logger,
		Now:        opts.Now,
	})

	return &Session{
		Auth:       manager,
		Spotify:    spotify,
		Aggregator: aggregator,
		Writer:     writer,
		Pipeline:   pipeline,
	}
}
