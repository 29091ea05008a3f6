package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/nrx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{
		ConfigPath: "config.toml",
		Logger:     logger,
	})

	if err := newApp(runner).Run(ctx, os.Args); err != nil {
		logger.Error("application error", "error", err, "kind", shared.ErrorKind(err))
		stop()
		os.Exit(exitCode(err))
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "nrx",
		Usage:   "Collect new releases from followed Spotify artists into a playlist",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("NRX_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}
