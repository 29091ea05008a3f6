// Package server provides HTTP routing, middleware and the loopback authorization handler.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] on [http.ServeMux] with method filtering. [Middleware]
// added first wraps outermost. [Defaults] stacks chi's RequestID, RealIP and Recoverer with a
// charm log request logger, and is also used by the web package's chi router.
//
// # Loopback Callback
//
// `nrx run` starts a temporary server on the redirect URI's host. [CodeHandler] checks the
// state parameter, passes the authorization code to the CLI through a channel and refuses
// any later callback. The CLI then runs the pipeline, which performs the exchange.
//
// [Serve] runs a server until its context is cancelled and then shuts down gracefully.
package server
