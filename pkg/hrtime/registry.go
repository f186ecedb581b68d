package hrtime

import (
	"fmt"
	"sync"
	"time"

	"hirestimer/internal/obs"

	"github.com/google/uuid"
)

// Registry owns the outstanding-request multiset and the currently
// applied resolution class. After every public operation returns,
// the applied class equals the tightest outstanding request; the
// platform backend is only called when that minimum changes.
//
// All mutations are serialized by a single mutex, so handles may be
// created, updated and released from any goroutine.
type Registry struct {
	mu     sync.Mutex
	set    periodSet
	active Period
	live   int
	closed bool

	backend Backend
	logger  *obs.Logger
	metrics *obs.Metrics

	onTransition func(Transition)

	// set for the shared registry: drain of the last handle closes the
	// registry and evicts it from the package slot
	autoClose bool
	onDrained func(*Registry)
}

// NewRegistry builds a caller-managed registry. A nil backend selects
// the platform backend. Logger and metrics are optional; pass nil to
// disable. Callers that construct a registry themselves are responsible
// for calling Close once every handle has been released.
func NewRegistry(backend Backend, logger *obs.Logger, metrics *obs.Metrics) *Registry {
	if backend == nil {
		backend = newBackend()
	}
	return &Registry{
		backend: backend,
		logger:  logger,
		metrics: metrics,
	}
}

// SetTransitionHook installs a callback invoked for every applied policy
// transition. It runs with the registry lock held and must not call back
// into the registry. Install it before the first request.
func (r *Registry) SetTransitionHook(fn func(Transition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTransition = fn
}

// Request quantizes the duration, records the request and returns a
// handle for it. The OS policy is adjusted only if this request tightens
// the outstanding minimum.
func (r *Registry) Request(d time.Duration) *Handle {
	h := r.request(d)
	if h == nil {
		panic("hrtime: request on closed registry")
	}
	return h
}

// request is the fallible form used by the shared-registry slot, which
// retries when it loses the race against a draining registry.
func (r *Registry) request(d time.Duration) *Handle {
	p := FromDuration(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	r.set.add(p)
	r.live++
	r.reconcile()

	h := &Handle{
		id:     uuid.NewString(),
		reg:    r,
		period: p,
	}

	if r.metrics != nil {
		r.metrics.RequestsTotal.WithLabelValues(p.String()).Inc()
		r.metrics.HandlesLive.Set(float64(r.live))
	}
	if r.logger != nil {
		r.logger.Info(map[string]interface{}{
			"op":     "request",
			"handle": h.id,
			"class":  p.String(),
			"active": r.active.String(),
			"live":   r.live,
		})
	}
	return h
}

func (r *Registry) update(h *Handle, d time.Duration) {
	p := FromDuration(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if h.released {
		panic("hrtime: update of released handle")
	}
	if r.closed {
		panic("hrtime: update on closed registry")
	}

	if p == h.period {
		if r.metrics != nil {
			r.metrics.UpdatesTotal.WithLabelValues("unchanged").Inc()
		}
		return
	}

	old := h.period
	r.set.remove(old)
	r.set.add(p)
	h.period = p
	r.reconcile()

	if r.metrics != nil {
		r.metrics.UpdatesTotal.WithLabelValues("changed").Inc()
	}
	if r.logger != nil {
		r.logger.Info(map[string]interface{}{
			"op":     "update",
			"handle": h.id,
			"from":   old.String(),
			"class":  p.String(),
			"active": r.active.String(),
		})
	}
}

func (r *Registry) release(h *Handle) {
	r.mu.Lock()
	if h.released {
		r.mu.Unlock()
		panic("hrtime: handle released twice")
	}
	if r.closed {
		r.mu.Unlock()
		panic("hrtime: release on closed registry")
	}
	h.released = true

	r.set.remove(h.period)
	r.live--
	r.reconcile()

	if r.metrics != nil {
		r.metrics.ReleasesTotal.Inc()
		r.metrics.HandlesLive.Set(float64(r.live))
	}
	if r.logger != nil {
		r.logger.Info(map[string]interface{}{
			"op":     "release",
			"handle": h.id,
			"class":  h.period.String(),
			"active": r.active.String(),
			"live":   r.live,
		})
	}

	drained := r.live == 0 && r.autoClose
	if drained {
		// active is already PeriodNone here; reconcile above performed
		// the final stop when the last elevated request went away.
		r.closed = true
	}
	onDrained := r.onDrained
	r.mu.Unlock()

	if drained && onDrained != nil {
		onDrained(r)
	}
}

// reconcile re-derives the applied class from the multiset and performs
// the stop/start pair when it changed. Caller holds r.mu.
func (r *Registry) reconcile() {
	next := r.set.min()
	if next == r.active {
		return
	}

	tr := Transition{At: time.Now(), From: r.active, To: next}
	if r.active != PeriodNone {
		r.backendCall("stop", r.active, r.backend.Stop)
	}
	r.active = next
	if next != PeriodNone {
		r.backendCall("start", next, r.backend.Start)
	}

	if r.metrics != nil {
		r.metrics.TransitionsTotal.WithLabelValues(tr.Direction()).Inc()
		r.metrics.ActiveClassMS.Set(float64(next))
	}
	if r.logger != nil {
		r.logger.Info(map[string]interface{}{
			"op":        "transition",
			"from":      tr.From.String(),
			"to":        tr.To.String(),
			"direction": tr.Direction(),
		})
	}
	if r.onTransition != nil {
		r.onTransition(tr)
	}
}

// backendCall invokes one side of the backend pair. A failure means the
// OS timer policy is in an unknown state; there is no safe way to keep
// running, so it aborts.
func (r *Registry) backendCall(name string, p Period, fn func(Period) error) {
	start := time.Now()
	if err := fn(p); err != nil {
		panic(fmt.Sprintf("hrtime: backend %s(%v): %v", name, p, err))
	}
	if r.metrics != nil {
		r.metrics.BackendCallSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// Close tears the registry down, restoring the OS baseline if a class is
// still applied. Handles issued by this registry must not be used after
// Close. Close is idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.active == PeriodNone {
		return
	}

	tr := Transition{At: time.Now(), From: r.active, To: PeriodNone}
	r.backendCall("stop", r.active, r.backend.Stop)
	r.active = PeriodNone

	if r.metrics != nil {
		r.metrics.TransitionsTotal.WithLabelValues(tr.Direction()).Inc()
		r.metrics.ActiveClassMS.Set(0)
	}
	if r.logger != nil {
		r.logger.Info(map[string]interface{}{
			"op":        "transition",
			"from":      tr.From.String(),
			"to":        tr.To.String(),
			"direction": tr.Direction(),
		})
	}
	if r.onTransition != nil {
		r.onTransition(tr)
	}
}

// Snapshot is a point-in-time view of the registry state.
type Snapshot struct {
	// Active is the class currently applied to the OS, PeriodNone at
	// baseline.
	Active Period
	// LiveHandles counts issued, unreleased handles, including ones
	// quantized to PeriodMax.
	LiveHandles int
	// Counts holds the outstanding request count per elevated class;
	// classes with no requests are omitted.
	Counts map[Period]uint32
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Active:      r.active,
		LiveHandles: r.live,
		Counts:      make(map[Period]uint32),
	}
	for i, c := range r.set.counts {
		if c > 0 {
			snap.Counts[PeriodMin+Period(i)] = c
		}
	}
	return snap
}
