package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nrx/internal/formatter"
	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints recorded runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": cmd.Int("limit")}
	if s := cmd.String("status"); s != "" {
		status := models.RunStatus(s)
		if !status.Valid() {
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, s)
		}
		criteria["status"] = status
	}

	repo, closeHistory, err := r.openHistory(ctx)
	defer closeHistory()
	if err != nil {
		return err
	}

	runs, err := repo.List(ctx, criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.HistoryToJSON(runs)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if _, err := r.output.Write(formatter.HistoryToText(runs)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
