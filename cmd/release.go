package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nrx/internal/formatter"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run signs in, collects recent releases and writes them to a new playlist.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if cmd.Bool("dry-run") {
		return r.Preview(ctx, cmd)
	}
	if cmd.Bool("tui") {
		if err := r.useFileLogger(); err != nil {
			return err
		}
	}

	recorder, closeHistory := r.recorder(ctx)
	defer closeHistory()
	session := r.newSession(recorder)

	if cmd.Bool("tui") {
		return r.runTUI(ctx, cmd, session, format)
	}

	code, err := r.authorize(ctx, cmd, session)
	if err != nil {
		return err
	}

	r.logger.Info("starting run", "window_days", r.config.Aggregator.WindowDays, "market", r.config.Aggregator.Market)
	progress, wait := r.printProgress()
	res, err := session.Pipeline.Run(ctx, code, progress)
	close(progress)
	wait()
	if err != nil {
		return err
	}

	return r.report(cmd, session, res, format)
}

// Preview signs in and lists the releases a run would add. Nothing is written to Spotify.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	session := r.newSession(nil)
	code, err := r.authorize(ctx, cmd, session)
	if err != nil {
		return err
	}
	if err := session.Auth.ExchangeCode(ctx, code); err != nil {
		return err
	}

	progress, wait := r.printProgress()
	agg, err := session.Pipeline.Preview(ctx, progress)
	close(progress)
	wait()
	if err != nil {
		return err
	}

	report := formatter.Report{
		Artists:     len(agg.Artists),
		Albums:      agg.Albums,
		Tracks:      agg.Tracks,
		Cutoff:      session.Aggregator.Cutoff(),
		GeneratedAt: r.now(),
	}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(path, format, report); err != nil {
			return err
		}
		return r.writePlain("\n✓ Preview of %d releases written to %s\n", len(agg.Albums), path)
	}

	data, err := formatter.Render(format, report)
	if err != nil {
		return err
	}
	r.writePlain("\n")
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// report prints a finished run and handles --output, --json and --copy.
func (r *Runner) report(cmd *cli.Command, session *tasks.Session, res *tasks.Result, format string) error {
	pl := res.Playlist

	if path := cmd.String("output"); path != "" {
		report := formatter.Report{
			Playlist:    &pl,
			Artists:     len(res.Artists),
			Albums:      res.Albums,
			Tracks:      res.Tracks,
			Cutoff:      session.Aggregator.Cutoff(),
			GeneratedAt: r.now(),
		}
		if err := formatter.WriteReport(path, format, report); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path, "format", format)
	}

	if cmd.Bool("copy") && pl.URL != "" {
		if err := r.copyText(pl.URL); err != nil {
			r.logger.Warn("failed to copy playlist url", "error", err)
		} else {
			r.logger.Info("playlist url copied to clipboard")
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Playlist Created!")
	r.writePlain("Name:     %s\n", pl.Name)
	r.writePlain("URL:      %s\n", pl.URL)
	r.writePlain("Artists:  %d\n", len(res.Artists))
	r.writePlain("Releases: %d\n", len(res.Albums))
	r.writePlain("Tracks:   %d (%d requests)\n", len(res.Tracks), res.Requests)
	if len(res.Tracks) == 0 {
		r.writePlainln("No releases in the last %d days; the playlist is empty.", r.config.Aggregator.WindowDays)
	}
	return nil
}

// printProgress prints updates from the returned channel until it is closed.
// The returned func blocks until every buffered update has been printed.
func (r *Runner) printProgress() (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.Authorize:
				r.writePlain("🔑 %s\n", update.Message)
			case tasks.FetchArtists:
				r.writePlain("👤 %s\n", update.Message)
			case tasks.FetchAlbums, tasks.FetchTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.ResolveUser, tasks.CreatePlaylist:
				r.writePlain("\n📝 %s\n", update.Message)
			case tasks.AddTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.Done:
				r.writePlain("✓ %s\n", update.Message)
			}
		}
	}()

	return progress, func() { <-done }
}
