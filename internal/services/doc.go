// Package services issues authenticated requests against the Spotify Web API.
//
// # Executor
//
// [Executor] attaches an Authorization header from a [HeaderSource] (the auth manager) to
// every GET and POST. Relative URIs are resolved against the API base URL; absolute URIs,
// which Spotify hands out as pagination cursors, are used unchanged.
//
// A 401 means the provider rejected the access token. The executor asks the header source
// for a refreshed header and repeats the request exactly once. A second 401, or any other
// non-2xx status, is returned as a [shared.RequestError] carrying the status code. Nothing
// else is retried.
//
// An optional client-side rate limit ([golang.org/x/time/rate]) paces requests.
//
// # Spotify Types
//
// [SpotifyService] wraps an executor with typed calls for the endpoints the release
// pipeline uses: the current user, followed artists, artist albums, album tracks,
// playlist creation and track insertion. Paged calls return one [Page] at a time.
package services
