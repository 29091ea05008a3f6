package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nrx/internal/shared"
	"golang.org/x/time/rate"
)

// ExecutorOpts configures an [Executor].
type ExecutorOpts struct {
	BaseURL           string // defaults to [SpotifyBaseURL]
	HTTPClient        *http.Client
	Headers           HeaderSource
	Logger            *log.Logger
	RequestsPerSecond float64 // zero disables pacing
}

// Executor issues authenticated GET and POST requests against the Web API.
//
// A 401 response triggers exactly one retry with a header from [HeaderSource.RefreshAuthHeader].
// Every other non-2xx status is returned as a [*shared.RequestError] without retry.
type Executor struct {
	baseURL string
	client  *http.Client
	headers HeaderSource
	logger  *log.Logger
	limiter *rate.Limiter
}

// NewExecutor creates an [Executor] from opts.
func NewExecutor(opts ExecutorOpts) *Executor {
	if opts.BaseURL == "" {
		opts.BaseURL = SpotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	e := &Executor{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
		headers: opts.Headers,
		logger:  opts.Logger,
	}
	if opts.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return e
}

// Get issues an authenticated GET and returns the response body.
func (e *Executor) Get(ctx context.Context, uri string) ([]byte, error) {
	return e.do(ctx, http.MethodGet, uri, nil)
}

// Post issues an authenticated POST with body encoded as JSON and returns the response body.
func (e *Executor) Post(ctx context.Context, uri string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return e.do(ctx, http.MethodPost, uri, payload)
}

// GetJSON issues a GET and decodes the response into v.
func (e *Executor) GetJSON(ctx context.Context, uri string, v any) error {
	data, err := e.Get(ctx, uri)
	if err != nil {
		return err
	}
	return decode(data, v)
}

// PostJSON issues a POST and decodes the response into v when v is non-nil.
func (e *Executor) PostJSON(ctx context.Context, uri string, body, v any) error {
	data, err := e.Post(ctx, uri, body)
	if err != nil {
		return err
	}
	return decode(data, v)
}

func (e *Executor) do(ctx context.Context, method, uri string, body []byte) ([]byte, error) {
	if e.headers == nil {
		return nil, fmt.Errorf("%w: executor has no header source", shared.ErrServiceUnavailable)
	}

	target := e.resolve(uri)

	header, err := e.headers.AuthHeader(ctx)
	if err != nil {
		return nil, err
	}

	status, data, err := e.send(ctx, method, target, header, body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		e.logger.Warn("token rejected, retrying request", "method", method, "url", target)

		header, err = e.headers.RefreshAuthHeader(ctx, header)
		if err != nil {
			return nil, err
		}
		if status, data, err = e.send(ctx, method, target, header, body); err != nil {
			return nil, err
		}
	}

	if status < 200 || status >= 300 {
		e.logger.Error("request failed", "method", method, "url", target, "status", status)
		return nil, &shared.RequestError{Method: method, URL: target, Status: status}
	}
	return data, nil
}

func (e *Executor) send(ctx context.Context, method, target string, header http.Header, body []byte) (int, []byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// resolve joins relative URIs to the base URL. Absolute URIs, such as pagination cursors, pass through.
func (e *Executor) resolve(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	return e.baseURL + "/" + strings.TrimLeft(uri, "/")
}

func decode(data []byte, v any) error {
	if v == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDecodeResponse, err)
	}
	return nil
}
