// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/nrx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// initCommand writes a starter configuration file.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write an example config.toml",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: r.Init,
	}
}

// setupCommand checks the configuration and prepares the run history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Validate configuration, initialize the database and print sign-in instructions",
		Action: r.Setup,
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write a report of the run to this file",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format (" + strings.Join(formatter.Formats, ", ") + ")",
			Value:   formatter.FormatText,
		},
	}
}

func authorizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to wait for the Spotify sign-in",
			Value: defaultAuthTimeout,
		},
		&cli.BoolFlag{
			Name:  "no-browser",
			Usage: "Print the sign-in URL instead of opening a browser",
		},
	}
}

// runCommand signs in and builds the monthly releases playlist.
func runCommand(r *Runner) *cli.Command {
	flags := append(authorizeFlags(), outputFlags()...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Review releases in an interactive view before writing",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Collect releases without creating a playlist",
		},
		&cli.BoolFlag{
			Name:  "copy",
			Usage: "Copy the playlist URL to the clipboard",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the result as JSON",
		},
	)

	return &cli.Command{
		Name:   "run",
		Usage:  "Sign in with Spotify and create the new releases playlist",
		Flags:  flags,
		Action: r.Run,
	}
}

// previewCommand lists what a run would add without writing anything.
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "preview",
		Usage:  "List recent releases from followed artists without creating a playlist",
		Flags:  append(authorizeFlags(), outputFlags()...),
		Action: r.Preview,
	}
}

// serveCommand starts the browser front-end.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sign-in page and build playlists from the browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to [server] host and port)",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Exit after the first completed sign-in",
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Do not open the landing page in a browser",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand prints recorded runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previous runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status (pending, running, succeeded, failed)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}
