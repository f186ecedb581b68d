package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"hirestimer/internal/obs"
	"hirestimer/pkg/hrtime"

	"github.com/google/uuid"
)

// Server exposes the registry over HTTP so local tools can request
// elevation without linking the library. Handles held for remote
// callers carry a TTL lease: a client that dies without releasing must
// not pin the OS policy forever (see LeaseMonitor).
type Server struct {
	reg     *hrtime.Registry
	logger  *obs.Logger
	metrics *obs.Metrics
	mux     *http.ServeMux

	mu      sync.Mutex
	handles map[string]*remoteHandle
}

type remoteHandle struct {
	h      *hrtime.Handle
	expiry time.Time
}

type contextKey string

const requestIDKey contextKey = "req_id"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func NewServer(reg *hrtime.Registry, logger *obs.Logger, metrics *obs.Metrics) *Server {
	s := &Server{
		reg:     reg,
		logger:  logger,
		metrics: metrics,
		mux:     http.NewServeMux(),
		handles: make(map[string]*remoteHandle),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("/v1/resolution", s.handleResolution)

	// Handle endpoints (simple path parsing to avoid extra router deps)
	s.mux.HandleFunc("/v1/handles/", s.handleHandles)
}

func (s *Server) handleHandles(w http.ResponseWriter, r *http.Request) {
	// Expected:
	// /v1/handles/acquire
	// /v1/handles/{id}/renew
	// /v1/handles/{id}/update
	// /v1/handles/{id}/release
	path := strings.TrimPrefix(r.URL.Path, "/v1/handles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeErr(w, http.StatusBadRequest, "handle_id required")
		return
	}
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	parts := strings.Split(path, "/")
	if len(parts) == 1 && parts[0] == "acquire" {
		s.handleAcquire(w, r)
		return
	}
	if len(parts) != 2 {
		writeErr(w, http.StatusNotFound, "invalid path")
		return
	}

	id := parts[0]
	switch parts[1] {
	case "renew":
		s.handleRenew(w, r, id)
	case "update":
		s.handleUpdate(w, r, id)
	case "release":
		s.handleRelease(w, r, id)
	default:
		writeErr(w, http.StatusNotFound, "unknown action")
	}
}

// --- Handlers ---

const maxLeaseMS = 10 * 60 * 1000

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

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req acquireReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DurationMS < 0 {
		writeErr(w, http.StatusBadRequest, "duration_ms must be >= 0")
		return
	}
	if req.TTLMS <= 0 || req.TTLMS > maxLeaseMS {
		writeErr(w, http.StatusBadRequest, "ttl_ms must be in (0, 600000]")
		return
	}

	h := s.reg.Request(time.Duration(req.DurationMS) * time.Millisecond)
	expiry := time.Now().Add(time.Duration(req.TTLMS) * time.Millisecond)

	s.mu.Lock()
	s.handles[h.ID()] = &remoteHandle{h: h, expiry: expiry}
	n := len(s.handles)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RemoteHandles.Set(float64(n))
	}
	if s.logger != nil {
		s.logger.Info(map[string]interface{}{
			"op":     "remote_acquire",
			"handle": h.ID(),
			"class":  h.Period().String(),
			"remote": n,
		})
	}

	writeJSON(w, http.StatusOK, acquireResp{
		HandleID:      h.ID(),
		ClassMS:       int64(h.Period()),
		Elevated:      h.Period().Elevated(),
		LeaseExpiryMS: expiry.UnixNano() / int64(time.Millisecond),
	})
}

type renewReq struct {
	ExtendByMS int64 `json:"extend_by_ms"`
}

type renewResp struct {
	Renewed       bool   `json:"renewed"`
	LeaseExpiryMS int64  `json:"lease_expiry_ms,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request, id string) {
	var req renewReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ExtendByMS <= 0 || req.ExtendByMS > maxLeaseMS {
		writeErr(w, http.StatusBadRequest, "extend_by_ms must be in (0, 600000]")
		return
	}

	s.mu.Lock()
	rh, ok := s.handles[id]
	var expiry time.Time
	if ok {
		expiry = time.Now().Add(time.Duration(req.ExtendByMS) * time.Millisecond)
		if expiry.After(rh.expiry) {
			rh.expiry = expiry
		} else {
			expiry = rh.expiry
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, renewResp{Renewed: false, Reason: "NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, renewResp{
		Renewed:       true,
		LeaseExpiryMS: expiry.UnixNano() / int64(time.Millisecond),
	})
}

type updateReq struct {
	DurationMS int64 `json:"duration_ms"`
}

type updateResp struct {
	ClassMS  int64  `json:"class_ms"`
	Elevated bool   `json:"elevated"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req updateReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DurationMS < 0 {
		writeErr(w, http.StatusBadRequest, "duration_ms must be >= 0")
		return
	}

	// Update under the server lock so the sweeper cannot release the
	// handle out from underneath the call.
	s.mu.Lock()
	rh, ok := s.handles[id]
	var class hrtime.Period
	if ok {
		rh.h.Update(time.Duration(req.DurationMS) * time.Millisecond)
		class = rh.h.Period()
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, updateResp{Reason: "NOT_FOUND"})
		return
	}
	writeJSON(w, http.StatusOK, updateResp{
		ClassMS:  int64(class),
		Elevated: class.Elevated(),
	})
}

type releaseResp struct {
	Released bool   `json:"released"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	rh, ok := s.handles[id]
	if ok {
		delete(s.handles, id)
	}
	n := len(s.handles)
	s.mu.Unlock()

	if !ok {
		// idempotent: a lease swept by the monitor releases the same way
		writeJSON(w, http.StatusOK, releaseResp{Released: false, Reason: "NOT_FOUND"})
		return
	}

	rh.h.Release()
	if s.metrics != nil {
		s.metrics.RemoteHandles.Set(float64(n))
	}
	if s.logger != nil {
		s.logger.Info(map[string]interface{}{
			"op":     "remote_release",
			"handle": id,
			"remote": n,
		})
	}
	writeJSON(w, http.StatusOK, releaseResp{Released: true})
}

type classCount struct {
	ClassMS int64  `json:"class_ms"`
	Count   uint32 `json:"count"`
}

type resolutionResp struct {
	ActiveClassMS int64        `json:"active_class_ms"`
	Elevated      bool         `json:"elevated"`
	LiveHandles   int          `json:"live_handles"`
	RemoteHandles int          `json:"remote_handles"`
	Counts        []classCount `json:"counts,omitempty"`
}

func (s *Server) handleResolution(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.reg.Snapshot()
	s.mu.Lock()
	remote := len(s.handles)
	s.mu.Unlock()

	out := resolutionResp{
		ActiveClassMS: int64(snap.Active),
		Elevated:      snap.Active.Elevated(),
		LiveHandles:   snap.LiveHandles,
		RemoteHandles: remote,
	}
	for p := hrtime.PeriodMin; p < hrtime.PeriodMax; p++ {
		if c, ok := snap.Counts[p]; ok {
			out.Counts = append(out.Counts, classCount{ClassMS: int64(p), Count: c})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ReleaseAll releases every remote handle, for daemon shutdown.
func (s *Server) ReleaseAll() {
	s.mu.Lock()
	handles := s.handles
	s.handles = make(map[string]*remoteHandle)
	s.mu.Unlock()

	for _, rh := range handles {
		rh.h.Release()
	}
	if s.metrics != nil {
		s.metrics.RemoteHandles.Set(0)
	}
}

// --- helpers ---

func readJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("missing body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
