package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/repositories"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	endpoints   tasks.Endpoints
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	now         func() time.Time
	openBrowser func(string) error
	copyText    func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Endpoints   tasks.Endpoints // provider overrides, empty in production
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Now         func() time.Time
	OpenBrowser func(string) error // defaults to [shared.OpenBrowser]
	CopyText    func(string) error // defaults to the system clipboard
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.CopyText == nil {
		opts.CopyText = clipboard.WriteAll
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		endpoints:   opts.Endpoints,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		now:         opts.Now,
		openBrowser: opts.OpenBrowser,
		copyText:    opts.CopyText,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, setupCommand, runCommand, previewCommand, serveCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger, e.g. for a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// before loads the configuration named by --config and applies environment overrides.
//
// A missing file is not an error: defaults plus environment variables may be enough.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	r.config.ApplyEnv(nil)
	return ctx, nil
}

// newSession builds a [tasks.Session] from the loaded configuration.
func (r *Runner) newSession(recorder tasks.RunRecorder) *tasks.Session {
	return tasks.NewSession(tasks.SessionOpts{
		Config:     r.config,
		Endpoints:  r.endpoints,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
		Now:        r.now,
		Recorder:   recorder,
	})
}

// openHistory opens the run history database. The returned close func is never nil.
func (r *Runner) openHistory(ctx context.Context) (*repositories.RunRepository, func(), error) {
	if r.config.Database.Path == "" {
		return nil, func() {}, fmt.Errorf("%w: database path is empty", shared.ErrMissingConfig)
	}

	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return nil, func() {}, err
	}
	return repositories.NewRunRepository(db), func() { closeDB(r.logger, db) }, nil
}

// recorder returns a history recorder when one can be opened. Run history is optional,
// so failures are logged and the run continues without it.
func (r *Runner) recorder(ctx context.Context) (tasks.RunRecorder, func()) {
	repo, closeFn, err := r.openHistory(ctx)
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
		return nil, closeFn
	}
	return repo, closeFn
}

func closeDB(logger *log.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// exitCode maps an error to a process exit status.
func exitCode(err error) int {
	var authErr *shared.AuthError
	var reqErr *shared.RequestError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrInvalidConfig), errors.Is(err, shared.ErrMissingConfig):
		return 2
	case errors.As(err, &authErr):
		return 3
	case errors.As(err, &reqErr):
		return 4
	default:
		return 1
	}
}
