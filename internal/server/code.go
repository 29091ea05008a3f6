package server

import (
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/nrx/internal/shared"
)

// CodeResult is the outcome of the authorization redirect.
type CodeResult struct {
	Code string
	err  error
}

func (c CodeResult) Error() error {
	return c.err
}

// CodeHandler receives the provider's authorization redirect on the loopback server.
//
// It validates state and hands the code to the caller through [CodeHandler.Result]. The code is
// not exchanged here. Only the first callback is processed.
type CodeHandler struct {
	path    string
	state   string
	results chan CodeResult
	once    sync.Once

	mu  sync.Mutex
	hit bool
}

// NewCodeHandler creates a handler serving path that accepts only state.
func NewCodeHandler(path, state string) *CodeHandler {
	if path == "" {
		path = "/callback"
	}
	return &CodeHandler{
		path:    path,
		state:   state,
		results: make(chan CodeResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CodeHandler) Routes() []string {
	return []string{h.path}
}

func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, shared.ErrCallbackHandled.Error(), http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CodeResult{err: shared.ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		err := &shared.AuthError{Kind: shared.MissingCode}
		if e := q.Get("error"); e != "" {
			err.Err = fmt.Errorf("authorization denied: %s", e)
		}
		h.Send(CodeResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CodeResult{Code: code})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = successPage.Execute(w, nil)
}

// Send delivers result once; later calls are ignored.
func (h *CodeHandler) Send(result CodeResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one [CodeResult] and is then closed.
func (h *CodeHandler) Result() <-chan CodeResult {
	return h.results
}

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Signed in to Spotify</h1>
        <p>Your release playlist is being built. Return to the terminal for progress.</p>
    </div>
</body>
</html>
`))
