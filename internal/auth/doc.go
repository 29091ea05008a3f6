// Package auth manages the OAuth2 credentials of a single interactive session.
//
// # Token Store
//
// [TokenStore] keeps named credentials in memory, each with its own expiration.
// A value is readable while the time since it was saved is strictly less than its TTL;
// saving under an existing key replaces both the value and the expiration baseline.
// Refresh tokens are saved with [NoExpiry].
//
// # Manager
//
// [Manager] drives the session through
//
//	Unauthenticated -> Authenticated -> (Expired -> Authenticated)* -> LoggedOut
//
// [Manager.ExchangeCode] runs the authorization-code grant exactly once.
// [Manager.AccessToken] serves the cached access token or runs the refresh grant,
// with concurrent callers collapsed onto a single request through singleflight.
// A session without a refresh token ends in [LoggedOut] with a SessionExpired error.
//
// [Manager.AuthHeader] returns a new bearer header per call and is the only credential
// surface the request executor sees. [Manager.RefreshAuthHeader] is its 401 path: it drops
// the rejected token (when it is still current) before building a fresh header.
//
// Errors are [*shared.AuthError] values and match the shared sentinels with [errors.Is].
package auth
