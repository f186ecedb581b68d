package hrtime

import (
	"sync"
	"time"
)

// The shared registry lives exactly from the first handle to the last.
// The slot holds it only while handles do; once the last handle is
// released the registry closes and evicts itself, and a later Request
// builds a fresh one with a fresh baseline snapshot.
var (
	sharedMu sync.Mutex
	shared   *Registry
)

// Request acquires a handle from the process-wide registry, creating it
// on first use. Callers that need their own logging, metrics or backend
// should construct a Registry explicitly instead.
func Request(d time.Duration) *Handle {
	for {
		sharedMu.Lock()
		r := shared
		if r == nil {
			r = NewRegistry(nil, nil, nil)
			r.autoClose = true
			r.onDrained = evictShared
			shared = r
		}
		sharedMu.Unlock()

		if h := r.request(d); h != nil {
			return h
		}
		// Lost the race against a registry draining to zero; retry on a
		// fresh one.
	}
}

func evictShared(r *Registry) {
	sharedMu.Lock()
	if shared == r {
		shared = nil
	}
	sharedMu.Unlock()
}
