package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/nrx/internal/server"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/desertthunder/nrx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 3 * time.Minute

// ErrAuthTimeout is returned when nobody completes the sign-in before --timeout.
var ErrAuthTimeout = errors.New("timed out waiting for Spotify sign-in")

// authorize sends the user to the Spotify sign-in page and waits for the redirect on the
// loopback address named by redirect_uri. It returns the authorization code without exchanging it.
func (r *Runner) authorize(ctx context.Context, cmd *cli.Command, session *tasks.Session) (string, error) {
	addr, path, err := loopback(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return "", err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}

	handler := server.NewCodeHandler(path, state)
	router := server.NewBasicRouter()
	router.Use(server.Defaults(r.logger.WithPrefix("callback"))...)
	router.Handler(handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- server.ServeListener(ctx, ln, router, r.logger) }()

	authURL := session.Auth.AuthURL(state)
	if cmd.Bool("no-browser") || !r.config.Server.OpenBrowser {
		r.writePlain("Open this URL to sign in with Spotify:\n\n  %s\n\n", authURL)
	} else if err := r.openBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to sign in with Spotify:\n\n  %s\n\n", authURL)
	} else {
		r.writePlain("Waiting for Spotify sign-in in your browser...\n")
	}

	select {
	case res := <-handler.Result():
		cancel()
		if serr := <-errc; serr != nil {
			r.logger.Warn("callback server shutdown", "error", serr)
		}
		if err := res.Error(); err != nil {
			return "", err
		}
		return res.Code, nil
	case err := <-errc:
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w after %s", ErrAuthTimeout, timeout)
		}
		if err == nil {
			err = errors.New("server stopped")
		}
		return "", fmt.Errorf("callback server failed: %w", err)
	}
}

// loopback splits a redirect URI into a listen address and callback path.
func loopback(redirectURI string) (addr, path string, err error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q is not an absolute URL", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: redirect_uri must use http for the local callback", shared.ErrInvalidConfig)
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return net.JoinHostPort(u.Hostname(), port), path, nil
}
