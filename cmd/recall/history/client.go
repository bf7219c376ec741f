package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/pkg/memory"
)

const requestTimeout = 30 * time.Second

// HistoryAPI fetches the summary and the last limit turns of a session.
// Exported so the session command can reuse it.
func HistoryAPI(ctx context.Context, apiTarget, sessionID string, limit int) (*memory.History, error) {
	u, err := sessionURL(apiTarget, sessionID, "history")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	var out memory.History
	if err := call(ctx, http.MethodGet, u, apiTarget, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatsAPI fetches the token accounting of a session.
func StatsAPI(ctx context.Context, apiTarget, sessionID string) (*memory.Stats, error) {
	u, err := sessionURL(apiTarget, sessionID, "stats")
	if err != nil {
		return nil, err
	}

	var out memory.Stats
	if err := call(ctx, http.MethodGet, u, apiTarget, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetAPI deletes a session on the server.
func ResetAPI(ctx context.Context, apiTarget, sessionID string) error {
	u, err := sessionURL(apiTarget, sessionID, "history")
	if err != nil {
		return err
	}

	var out api.ResetResponse
	return call(ctx, http.MethodDelete, u, apiTarget, &out)
}

func sessionURL(apiTarget, sessionID, action string) (*url.URL, error) {
	u, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	return u.JoinPath("sessions", sessionID, action), nil
}

func call(ctx context.Context, method string, u *url.URL, apiTarget string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to recall API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
