package main

import (
	"context"
	"fmt"
	"net"

	"github.com/desertthunder/nrx/internal/server"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/desertthunder/nrx/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the browser front-end until interrupted, or until the first sign-in completes with --once.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	opts := web.Options{
		Config: r.config,
		Logger: r.logger.WithPrefix("web"),
		Once:   cmd.Bool("once"),
	}

	var recorder tasks.RunRecorder
	repo, closeHistory, err := r.openHistory(ctx)
	defer closeHistory()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
	} else {
		recorder = repo
		opts.History = repo
	}
	opts.NewSession = func() *tasks.Session { return r.newSession(recorder) }

	app := web.New(opts)

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Once {
		go func() {
			select {
			case <-app.Done():
				r.logger.Info("sign-in completed, stopping server")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	url := landingURL(ln.Addr())
	r.writePlain("Serving on %s\n", url)
	if !cmd.Bool("no-browser") && r.config.Server.OpenBrowser {
		if err := r.openBrowser(url); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	return server.ServeListener(ctx, ln, app, r.logger)
}

// landingURL turns a listener address into a browsable URL, replacing wildcard hosts with loopback.
func landingURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
