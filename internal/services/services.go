package services

import (
	"context"
	"net/http"
)

// HeaderSource produces Authorization headers for the [Executor].
//
// Implemented by auth.Manager.
type HeaderSource interface {
	// AuthHeader returns a header for the current credential. Each call returns a new value.
	AuthHeader(ctx context.Context) (http.Header, error)

	// RefreshAuthHeader is called after the provider rejected the credential in rejected.
	// It returns a header built from a refreshed credential.
	RefreshAuthHeader(ctx context.Context, rejected http.Header) (http.Header, error)
}

// Requester is the request surface consumed by the release aggregator and playlist writer.
type Requester interface {
	GetJSON(ctx context.Context, uri string, v any) error
	PostJSON(ctx context.Context, uri string, body, v any) error
}

var _ Requester = (*Executor)(nil)
