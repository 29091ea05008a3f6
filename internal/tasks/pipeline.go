package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/services"
	"github.com/desertthunder/nrx/internal/shared"
)

// Authorizer trades an authorization code for a session. Implemented by auth.Manager.
type Authorizer interface {
	ExchangeCode(ctx context.Context, code string) error
}

// UserResolver looks up the signed-in user. Implemented by [services.SpotifyService].
type UserResolver interface {
	CurrentUser(ctx context.Context) (*services.SpotifyUser, error)
}

// RunRecorder persists run history. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Create(ctx context.Context, run *models.Run) error
	Update(ctx context.Context, run *models.Run) error
	SaveAlbums(ctx context.Context, runID string, albums []models.Album) error
}

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	Auth       Authorizer
	Aggregator *ReleaseAggregator
	Writer     *PlaylistWriter
	Users      UserResolver
	UserID     string      // playlist owner; resolved through Users when empty
	Recorder   RunRecorder // optional
	Logger     *log.Logger
	Now        func() time.Time
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	Playlist models.Playlist `json:"playlist"`
	Artists  []string        `json:"artists"`
	Albums   []models.Album  `json:"albums"`
	Tracks   []string        `json:"tracks"`
	Requests int             `json:"requests"` // add-tracks calls issued
}

// Pipeline runs exchange, aggregation, playlist creation and track insertion in order.
type Pipeline struct {
	auth       Authorizer
	aggregator *ReleaseAggregator
	writer     *PlaylistWriter
	users      UserResolver
	userID     string
	recorder   RunRecorder
	logger     *log.Logger
	now        func() time.Time
}

// NewPipeline creates a [Pipeline] from opts.
func NewPipeline(opts PipelineOpts) *Pipeline {
	p := &Pipeline{
		auth:       opts.Auth,
		aggregator: opts.Aggregator,
		writer:     opts.Writer,
		users:      opts.Users,
		userID:     opts.UserID,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if p.logger == nil {
		p.logger = shared.NewLogger(nil)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run exchanges code for a session and then calls [Pipeline.Execute].
//
// Authentication failures abort before any catalog request or playlist write.
func (p *Pipeline) Run(ctx context.Context, code string, progress chan<- ProgressUpdate) (*Result, error) {
	run := p.startRun(ctx)

	sendProgress(progress, authorizeUpdate())
	if err := p.auth.ExchangeCode(ctx, code); err != nil {
		p.finishRun(ctx, run, nil, err)
		return nil, err
	}

	res, err := p.execute(ctx, progress)
	p.finishRun(ctx, run, res, err)
	return res, err
}

// Execute aggregates releases and writes them to a new playlist using an already authorized session.
func (p *Pipeline) Execute(ctx context.Context, progress chan<- ProgressUpdate) (*Result, error) {
	run := p.startRun(ctx)
	res, err := p.execute(ctx, progress)
	p.finishRun(ctx, run, res, err)
	return res, err
}

// Preview runs the three discovery stages without writing anything to the provider.
func (p *Pipeline) Preview(ctx context.Context, progress chan<- ProgressUpdate) (*Aggregation, error) {
	return p.aggregator.Aggregate(ctx, progress)
}

// Publish writes an aggregation produced by [Pipeline.Preview] to a new playlist.
func (p *Pipeline) Publish(ctx context.Context, agg *Aggregation, progress chan<- ProgressUpdate) (*Result, error) {
	run := p.startRun(ctx)
	res, err := p.publish(ctx, agg, progress)
	p.finishRun(ctx, run, res, err)
	return res, err
}

func (p *Pipeline) execute(ctx context.Context, progress chan<- ProgressUpdate) (*Result, error) {
	agg, err := p.aggregator.Aggregate(ctx, progress)
	if err != nil {
		return nil, err
	}
	return p.publish(ctx, agg, progress)
}

func (p *Pipeline) publish(ctx context.Context, agg *Aggregation, progress chan<- ProgressUpdate) (*Result, error) {
	if agg == nil {
		return nil, fmt.Errorf("%w: nothing to publish", shared.ErrInvalidInput)
	}

	owner, err := p.owner(ctx, progress)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, createPlaylistUpdate(p.writer.PlaylistName()))
	pl, err := p.writer.CreatePlaylist(ctx, owner)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, playlistCreatedUpdate(pl))

	if err := p.writer.addTracks(ctx, pl.ID, agg.Tracks, progress); err != nil {
		return nil, err
	}

	res := &Result{
		Playlist: *pl,
		Artists:  agg.Artists,
		Albums:   agg.Albums,
		Tracks:   agg.Tracks,
		Requests: ChunkCount(len(agg.Tracks)),
	}
	sendProgress(progress, doneUpdate(res))
	return res, nil
}

func (p *Pipeline) owner(ctx context.Context, progress chan<- ProgressUpdate) (string, error) {
	if p.userID != "" {
		return p.userID, nil
	}
	if p.users == nil {
		return "", shared.ErrMissingCredentials
	}

	sendProgress(progress, resolveUserUpdate())
	user, err := p.users.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	p.logger.Debug("resolved playlist owner", "user", user.ID)
	return user.ID, nil
}

// startRun records a running entry. Recorder failures are logged and never fail the pipeline.
func (p *Pipeline) startRun(ctx context.Context) *models.Run {
	if p.recorder == nil {
		return nil
	}

	run := models.NewRun(p.now())
	run.SetStatus(models.RunRunning)
	if err := p.recorder.Create(ctx, run); err != nil {
		p.logger.Warn("failed to record run", "error", err)
		return nil
	}
	return run
}

func (p *Pipeline) finishRun(ctx context.Context, run *models.Run, res *Result, err error) {
	if run == nil {
		return
	}

	// history must be written even when ctx was cancelled mid-run
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		run.Fail(shared.ErrorKind(err), err, p.now())
	} else {
		run.SetCounts(len(res.Artists), len(res.Albums), len(res.Tracks))
		run.Succeed(res.Playlist, p.now())
		if serr := p.recorder.SaveAlbums(ctx, run.ID(), res.Albums); serr != nil {
			p.logger.Warn("failed to record run albums", "run", run.ID(), "error", serr)
		}
	}

	if uerr := p.recorder.Update(ctx, run); uerr != nil {
		p.logger.Warn("failed to update run", "run", run.ID(), "error", uerr)
	}
}
