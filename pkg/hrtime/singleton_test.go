package hrtime

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

type countingBackend struct {
	starts int
	stops  int
}

func (b *countingBackend) Start(Period) error { b.starts++; return nil }
func (b *countingBackend) Stop(Period) error  { b.stops++; return nil }

// The shared registry must live exactly from the first handle to the
// last: releasing everything tears it down and restores the baseline,
// and the next request builds a fresh one (with a fresh backend, and on
// macOS a fresh baseline snapshot).
func TestSharedRegistryLifecycle(t *testing.T) {
	orig := newBackend
	defer func() { newBackend = orig }()

	var backends []*countingBackend
	newBackend = func() Backend {
		b := &countingBackend{}
		backends = append(backends, b)
		return b
	}

	h1 := Request(time.Millisecond)
	h2 := Request(4 * time.Millisecond)
	assert.Equal(t, len(backends), 1, "one registry serves both handles")
	assert.Equal(t, backends[0].starts, 1)

	h2.Release()
	h1.Release()
	assert.Equal(t, backends[0].stops, 1)

	sharedMu.Lock()
	evicted := shared == nil
	sharedMu.Unlock()
	assert.Assert(t, evicted, "registry should be evicted once drained")

	h3 := Request(2 * time.Millisecond)
	assert.Equal(t, len(backends), 2, "new request builds a fresh registry")
	assert.Equal(t, backends[1].starts, 1)

	h3.Release()
	assert.Equal(t, backends[1].stops, 1)
}

func TestSharedRegistryRejectsDrainedInstance(t *testing.T) {
	orig := newBackend
	defer func() { newBackend = orig }()
	newBackend = func() Backend { return noopBackend{} }

	h := Request(time.Millisecond)

	// Grab the live registry, drain it, then confirm a stale reference
	// cannot issue new handles.
	sharedMu.Lock()
	r := shared
	sharedMu.Unlock()

	h.Release()
	assert.Assert(t, r.request(time.Millisecond) == nil, "drained registry must refuse new requests")
}
