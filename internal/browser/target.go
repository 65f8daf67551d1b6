// Package browser provides the HTTP discovery layer for a running
// browser's DevTools endpoint: listing, creating, closing and
// activating targets, and resolving a target to its WebSocket URL.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrTargetNotFound indicates the target ID is unknown or the target
// exposes no debuggable WebSocket endpoint.
var ErrTargetNotFound = errors.New("target not found")

// Target represents a CDP target (page, worker, etc).
type Target struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
	FaviconURL   string `json:"faviconUrl,omitempty"`
	WebSocketURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo contains browser version information from /json/version.
type VersionInfo struct {
	Browser       string `json:"Browser"`
	ProtocolVer   string `json:"Protocol-Version"`
	UserAgent     string `json:"User-Agent"`
	V8Version     string `json:"V8-Version"`
	WebKitVersion string `json:"WebKit-Version"`
	WebSocketURL  string `json:"webSocketDebuggerUrl"`
}

// FetchTargets retrieves the list of available targets from the CDP
// endpoint. Tries /json/list first and falls back to /json for older
// browsers. Uses http.DefaultClient which has no timeout; callers must
// provide a context with timeout. This is acceptable for local CDP
// calls where network issues are rare.
func FetchTargets(ctx context.Context, host string, port int) ([]Target, error) {
	var lastErr error
	listed := false
	for _, path := range []string{"/json/list", "/json"} {
		body, err := get(ctx, host, port, path)
		if err != nil {
			lastErr = err
			continue
		}

		var targets []Target
		if err := json.Unmarshal(body, &targets); err != nil {
			lastErr = fmt.Errorf("parse targets: %w", err)
			continue
		}
		if len(targets) > 0 {
			return targets, nil
		}
		listed = true
	}
	if listed {
		// Endpoint reachable, target list genuinely empty
		return nil, nil
	}
	return nil, lastErr
}

// FetchVersion retrieves browser version info from the CDP endpoint.
func FetchVersion(ctx context.Context, host string, port int) (*VersionInfo, error) {
	body, err := get(ctx, host, port, "/json/version")
	if err != nil {
		return nil, err
	}

	var info VersionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}

	return &info, nil
}

// NewTarget opens a new tab, optionally navigating it to pageURL, and
// returns the created target.
func NewTarget(ctx context.Context, host string, port int, pageURL string) (*Target, error) {
	path := "/json/new"
	if pageURL != "" {
		path += "?" + url.QueryEscape(pageURL)
	}

	body, err := get(ctx, host, port, path)
	if err != nil {
		return nil, err
	}

	var target Target
	if err := json.Unmarshal(body, &target); err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	return &target, nil
}

// CloseTarget closes the tab with the given target ID and returns the
// browser's plain-text acknowledgment.
func CloseTarget(ctx context.Context, host string, port int, targetID string) (string, error) {
	body, err := get(ctx, host, port, "/json/close/"+targetID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ActivateTarget brings the tab with the given target ID to the front
// and returns the browser's plain-text acknowledgment.
func ActivateTarget(ctx context.Context, host string, port int, targetID string) (string, error) {
	body, err := get(ctx, host, port, "/json/activate/"+targetID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// ResolveWebSocketURL resolves a target identifier to a WebSocket URL
// to open a connection against. A ws:// or wss:// string passes
// through unchanged; otherwise the target list is searched by ID.
// Fails with ErrTargetNotFound if the ID is unknown or the target has
// no webSocketDebuggerUrl.
func ResolveWebSocketURL(ctx context.Context, host string, port int, idOrURL string) (string, error) {
	if strings.HasPrefix(idOrURL, "ws://") || strings.HasPrefix(idOrURL, "wss://") {
		return idOrURL, nil
	}

	targets, err := FetchTargets(ctx, host, port)
	if err != nil {
		return "", err
	}

	for i := range targets {
		if targets[i].ID != idOrURL {
			continue
		}
		if targets[i].WebSocketURL == "" {
			break
		}
		return targets[i].WebSocketURL, nil
	}

	return "", fmt.Errorf("%w: no webSocketDebuggerUrl for %q", ErrTargetNotFound, idOrURL)
}

// FindPageTarget returns the first page-type target from the list.
func FindPageTarget(targets []Target) *Target {
	for i := range targets {
		if targets[i].Type == "page" {
			return &targets[i]
		}
	}
	return nil
}

func get(ctx context.Context, host string, port int, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("http://%s:%d%s", host, port, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status for %s: %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return body, nil
}
