package hiresclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a hirestimed daemon. It requests elevation on behalf
// of the calling process and keeps the lease alive with renewals.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
	}
}

// ---- Wire format (matches the daemon HTTP API) ----

type acquireReq struct {
	DurationMS int64 `json:"duration_ms"`
	TTLMS      int64 `json:"ttl_ms"`
}
type acquireResp struct {
	HandleID      string `json:"handle_id"`
	ClassMS       int64  `json:"class_ms"`
	Elevated      bool   `json:"elevated"`
	LeaseExpiryMS int64  `json:"lease_expiry_ms"`
}

type renewReq struct {
	ExtendByMS int64 `json:"extend_by_ms"`
}
type renewResp struct {
	Renewed       bool   `json:"renewed"`
	LeaseExpiryMS int64  `json:"lease_expiry_ms,omitempty"`
	Reason        string `json:"reason,omitempty"` // NOT_FOUND
}

type updateReq struct {
	DurationMS int64 `json:"duration_ms"`
}
type updateResp struct {
	ClassMS  int64  `json:"class_ms"`
	Elevated bool   `json:"elevated"`
	Reason   string `json:"reason,omitempty"`
}

type releaseResp struct {
	Released bool   `json:"released"`
	Reason   string `json:"reason,omitempty"`
}

type resolutionResp struct {
	ActiveClassMS int64 `json:"active_class_ms"`
	Elevated      bool  `json:"elevated"`
	LiveHandles   int   `json:"live_handles"`
	RemoteHandles int   `json:"remote_handles"`
}

// ---- Operations ----

// Acquire requests a handle for the given duration, leased for ttl.
// The lease must be renewed (see StartHeartbeat) or the daemon's sweeper
// will release the handle.
func (c *Client) Acquire(ctx context.Context, duration, ttl time.Duration) (RemoteHandle, error) {
	if ttl <= 0 {
		return RemoteHandle{}, fmt.Errorf("ttl must be > 0")
	}

	path := c.baseURL + "/v1/handles/acquire"
	reqBody := acquireReq{DurationMS: duration.Milliseconds(), TTLMS: ttl.Milliseconds()}

	var out acquireResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, path, reqBody, &out)
	if err != nil {
		return RemoteHandle{}, err
	}
	if code != http.StatusOK {
		return RemoteHandle{}, &UnexpectedStatusError{Method: http.MethodPost, Path: path, Code: code, Body: raw}
	}

	return RemoteHandle{
		HandleID:      out.HandleID,
		ClassMS:       out.ClassMS,
		Elevated:      out.Elevated,
		LeaseExpiryMS: out.LeaseExpiryMS,
	}, nil
}

// Renew extends the lease. Returns the new expiry in unix ms.
func (c *Client) Renew(ctx context.Context, h RemoteHandle, extendBy time.Duration) (int64, error) {
	if h.HandleID == "" {
		return 0, fmt.Errorf("invalid handle")
	}
	if extendBy <= 0 {
		return 0, fmt.Errorf("extendBy must be > 0")
	}

	path := fmt.Sprintf("%s/v1/handles/%s/renew", c.baseURL, h.HandleID)
	reqBody := renewReq{ExtendByMS: extendBy.Milliseconds()}

	var out renewResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, path, reqBody, &out)
	if err != nil {
		return 0, err
	}
	switch code {
	case http.StatusOK:
		return out.LeaseExpiryMS, nil
	case http.StatusNotFound:
		return 0, &HandleNotFoundError{HandleID: h.HandleID}
	}
	return 0, &UnexpectedStatusError{Method: http.MethodPost, Path: path, Code: code, Body: raw}
}

// Update re-quantizes the remote request to a new duration and returns
// the resulting class in ms.
func (c *Client) Update(ctx context.Context, h RemoteHandle, duration time.Duration) (int64, error) {
	if h.HandleID == "" {
		return 0, fmt.Errorf("invalid handle")
	}

	path := fmt.Sprintf("%s/v1/handles/%s/update", c.baseURL, h.HandleID)
	reqBody := updateReq{DurationMS: duration.Milliseconds()}

	var out updateResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, path, reqBody, &out)
	if err != nil {
		return 0, err
	}
	switch code {
	case http.StatusOK:
		return out.ClassMS, nil
	case http.StatusNotFound:
		return 0, &HandleNotFoundError{HandleID: h.HandleID}
	}
	return 0, &UnexpectedStatusError{Method: http.MethodPost, Path: path, Code: code, Body: raw}
}

// Release withdraws the request. Releasing an already-swept handle is
// not an error.
func (c *Client) Release(ctx context.Context, h RemoteHandle) (bool, error) {
	if h.HandleID == "" {
		return false, fmt.Errorf("invalid handle")
	}

	path := fmt.Sprintf("%s/v1/handles/%s/release", c.baseURL, h.HandleID)

	var out releaseResp
	code, raw, err := c.doJSON(ctx, http.MethodPost, path, nil, &out)
	if err != nil {
		return false, err
	}
	if code != http.StatusOK {
		return false, &UnexpectedStatusError{Method: http.MethodPost, Path: path, Code: code, Body: raw}
	}
	return out.Released, nil
}

// Resolution fetches the daemon's current arbitration state.
func (c *Client) Resolution(ctx context.Context) (Resolution, error) {
	path := c.baseURL + "/v1/resolution"

	var out resolutionResp
	code, raw, err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return Resolution{}, err
	}
	if code != http.StatusOK {
		return Resolution{}, &UnexpectedStatusError{Method: http.MethodGet, Path: path, Code: code, Body: raw}
	}
	return Resolution{
		ActiveClassMS: out.ActiveClassMS,
		Elevated:      out.Elevated,
		LiveHandles:   out.LiveHandles,
		RemoteHandles: out.RemoteHandles,
	}, nil
}

// doJSON sends JSON and optionally decodes JSON response.
// Returns status code and raw body (trimmed) for debugging.
func (c *Client) doJSON(ctx context.Context, method, url string, req any, resp any) (int, string, error) {
	var body io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, "", err
	}
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer rsp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))
	trimmed := strings.TrimSpace(string(raw))

	if resp != nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, resp) // tolerate non-JSON error bodies
	}
	return rsp.StatusCode, trimmed, nil
}
