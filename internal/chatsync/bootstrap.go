package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Bootstrapper acquires a backend session id with a single one-shot request.
// It never retries; surfacing or retrying a failure is the caller's call.
type Bootstrapper struct {
	baseURL string
	client  *http.Client
}

// NewBootstrapper builds a bootstrapper against the given API base URL, e.g.
// "http://localhost:8000".
func NewBootstrapper(baseURL string, timeout time.Duration) *Bootstrapper {
	return &Bootstrapper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// StartSession POSTs to /api/v1/chat/start-session and returns the session id
// the backend allocated.
func (b *Bootstrapper) StartSession(ctx context.Context) (string, error) {
	url := b.baseURL + "/api/v1/chat/start-session"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBootstrapFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrBootstrapFailed, resp.StatusCode)
	}

	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrBootstrapFailed, err)
	}
	if body.SessionID == "" {
		return "", fmt.Errorf("%w: empty session id in response", ErrBootstrapFailed)
	}

	log.Debug().Str("component", "chatsync").Str("session_id", body.SessionID).Msg("session started")
	return body.SessionID, nil
}
