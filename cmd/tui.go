package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/desertthunder/nrx/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/nrx-tui.log"

// useFileLogger redirects logs to a file so they do not interfere with TUI rendering.
func (r *Runner) useFileLogger() error {
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	return nil
}

// runTUI signs in on the terminal and then hands the session's pipeline to the interactive view.
func (r *Runner) runTUI(ctx context.Context, cmd *cli.Command, session *tasks.Session, format string) error {
	code, err := r.authorize(ctx, cmd, session)
	if err != nil {
		return err
	}
	if err := session.Auth.ExchangeCode(ctx, code); err != nil {
		return err
	}

	model := ui.NewModel(ctx, session.Pipeline, session.Writer.PlaylistName())
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return err
	}
	if res := model.Result(); res != nil {
		return r.report(cmd, session, res, format)
	}
	r.writePlain("No playlist was created.\n")
	return nil
}
