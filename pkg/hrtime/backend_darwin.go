//go:build darwin && cgo

package hrtime

/*
#include <mach/mach_init.h>
#include <mach/mach_time.h>
#include <mach/thread_act.h>
#include <mach/thread_policy.h>
#include <pthread.h>

static thread_port_t hrtime_self(void) {
	return pthread_mach_thread_np(pthread_self());
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// macOS has no global timer-period knob; the closest equivalent is the
// Mach time-constraint scheduling policy on the calling thread. The
// computation and constraint windows are expressed as multiples of the
// requested period. The factors have no deeper rationale than "enough
// slack"; tune here if needed.
const (
	computationFactor = 5
	constraintFactor  = 100
)

type darwinBackend struct {
	// ticks per millisecond on this machine's timebase
	scale float64
	// pre-elevation policy, restored byte-for-byte on Stop
	baseline C.thread_time_constraint_policy_data_t
}

func newPlatformBackend() Backend {
	var tb C.mach_timebase_info_data_t
	if kr := C.mach_timebase_info(&tb); kr != C.KERN_SUCCESS {
		panic(fmt.Sprintf("hrtime: mach_timebase_info returned %d", kr))
	}
	b := &darwinBackend{
		scale: float64(tb.denom) * 1e6 / float64(tb.numer),
	}
	var count C.mach_msg_type_number_t = C.THREAD_TIME_CONSTRAINT_POLICY_COUNT
	var getDefault C.boolean_t
	kr := C.thread_policy_get(
		C.hrtime_self(),
		C.THREAD_TIME_CONSTRAINT_POLICY,
		C.thread_policy_t(unsafe.Pointer(&b.baseline)),
		&count,
		&getDefault,
	)
	if kr != C.KERN_SUCCESS {
		panic(fmt.Sprintf("hrtime: thread_policy_get returned %d", kr))
	}
	return b
}

func (b *darwinBackend) set(policy *C.thread_time_constraint_policy_data_t) error {
	kr := C.thread_policy_set(
		C.hrtime_self(),
		C.THREAD_TIME_CONSTRAINT_POLICY,
		C.thread_policy_t(unsafe.Pointer(policy)),
		C.THREAD_TIME_CONSTRAINT_POLICY_COUNT,
	)
	if kr != C.KERN_SUCCESS {
		return fmt.Errorf("thread_policy_set returned %d", kr)
	}
	return nil
}

func (b *darwinBackend) Start(p Period) error {
	ticks := b.scale * float64(p)
	policy := C.thread_time_constraint_policy_data_t{
		period:      C.uint32_t(ticks),
		computation: C.uint32_t(ticks * computationFactor),
		constraint:  C.uint32_t(ticks * constraintFactor),
		preemptible: 1,
	}
	return b.set(&policy)
}

func (b *darwinBackend) Stop(Period) error {
	baseline := b.baseline
	return b.set(&baseline)
}
