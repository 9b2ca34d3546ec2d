package liveness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sole/cmd/internal/auth/session"
)

// HeartbeatClient probes the session authority over HTTP. It implements both
// Prober (POST /auth/heartbeat) and Terminator (POST /auth/logout), so a
// single client backs the whole monitor.
//
// A 401 with a recognized reason code maps to the session sentinel errors;
// everything else (5xx, network failure, timeout, garbage body) is an
// inconclusive infrastructure fault.
type HeartbeatClient struct {
	base  string
	token string
	http  *http.Client
}

// NewHeartbeatClient builds a client for the authority at baseURL, holding the
// session's bearer token. httpClient may be nil.
func NewHeartbeatClient(baseURL, token string, httpClient *http.Client) *HeartbeatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HeartbeatClient{
		base:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token: token,
		http:  httpClient,
	}
}

// Probe performs one heartbeat.
func (c *HeartbeatClient) Probe(ctx context.Context) error {
	resp, err := c.post(ctx, "/auth/heartbeat")
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		if err := session.ErrorFromReason(session.Reason(readErrorCode(resp.Body))); err != nil {
			return err
		}
		// Unauthorized without a recognized reason code: a misconfigured
		// proxy, not an authority decision.
		return fmt.Errorf("heartbeat: unauthorized without reason")
	default:
		return fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
}

// Terminate sends the courtesy logout. The endpoint is idempotent.
func (c *HeartbeatClient) Terminate(ctx context.Context) error {
	resp, err := c.post(ctx, "/auth/logout")
	if err != nil {
		return err
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HeartbeatClient) post(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.http.Do(req)
}

func readErrorCode(body io.Reader) string {
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&env); err != nil {
		return ""
	}
	return env.Error.Code
}

func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
