package hrtime_test

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hirestimer/pkg/hrtime"
)

// Hammers one registry from many goroutines and checks the arbitration
// invariants hold throughout: backend start/stop calls never overlap
// (the mock errors and the registry aborts if they do), and once every
// handle is gone the applied class is back at baseline.
func TestConcurrentRequestReleaseConvergesToBaseline(t *testing.T) {
	b := &mockBackend{}
	reg := hrtime.NewRegistry(b, nil, nil)
	defer reg.Close()

	const (
		workers    = 16
		iterations = 300
	)

	var (
		requests int64
		updates  int64
		releases int64
		coarse   int64
	)

	wg := sync.WaitGroup{}
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i) + 1))

			for n := 0; n < iterations; n++ {
				// Spread requests across tight, loose and disabled
				// classes so the minimum keeps moving.
				ms := 1 + rng.Intn(24)
				h := reg.Request(time.Duration(ms) * time.Millisecond)
				atomic.AddInt64(&requests, 1)
				if !h.Period().Elevated() {
					atomic.AddInt64(&coarse, 1)
				}

				if rng.Intn(4) == 0 {
					h.Update(time.Duration(1+rng.Intn(24)) * time.Millisecond)
					atomic.AddInt64(&updates, 1)
				}
				if rng.Intn(8) == 0 {
					time.Sleep(time.Duration(rng.Intn(200)) * time.Microsecond)
				}

				h.Release()
				atomic.AddInt64(&releases, 1)
			}
		}()
	}

	wg.Wait()

	snap := reg.Snapshot()
	if snap.LiveHandles != 0 {
		t.Fatalf("expected no live handles after all releases; got %d", snap.LiveHandles)
	}
	if snap.Active != hrtime.PeriodNone {
		t.Fatalf("expected baseline after all releases; active=%v", snap.Active)
	}
	if len(snap.Counts) != 0 {
		t.Fatalf("expected empty counts; got %v", snap.Counts)
	}

	starts, stops, current := b.stats()
	if current != hrtime.PeriodNone {
		t.Fatalf("backend left applied at %v", current)
	}
	if starts != stops {
		t.Fatalf("unbalanced backend calls: starts=%d stops=%d", starts, stops)
	}
	if starts == 0 {
		t.Fatalf("test never elevated; workload too coarse")
	}

	t.Log("\n================= hrtime Concurrency Report =================")
	t.Logf("Workers:             %d", workers)
	t.Logf("Requests:            %d", atomic.LoadInt64(&requests))
	t.Logf("Updates:             %d", atomic.LoadInt64(&updates))
	t.Logf("Releases:            %d", atomic.LoadInt64(&releases))
	t.Logf("Coarse (no-op):      %d", atomic.LoadInt64(&coarse))
	t.Logf("Backend starts:      %d", starts)
	t.Logf("Backend stops:       %d", stops)
	t.Log("=============================================================")
}
