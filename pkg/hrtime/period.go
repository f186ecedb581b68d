// Package hrtime arbitrates requests for elevated OS timer resolution.
//
// Many call sites may independently want sub-10ms sleep/wake granularity.
// Each one acquires a Handle for the duration it cares about; the shared
// registry tracks the tightest outstanding request and only touches the
// OS policy when that minimum actually changes. When the last Handle is
// released the OS default is restored.
package hrtime

import "time"

// Period is a timer resolution class, measured in whole milliseconds.
// Smaller is a tighter (stronger) request.
type Period int

const (
	// PeriodNone means no outstanding request; the OS runs at baseline.
	PeriodNone Period = 0
	// PeriodMin is the tightest resolution class.
	PeriodMin Period = 1
	// PeriodMax is the "no elevation wanted" sentinel. Requests quantized
	// to PeriodMax never keep elevation alive.
	PeriodMax Period = 16
)

// FromDuration quantizes a requested duration into a resolution class.
// Rounding is always up: under-requesting resolution is unsafe,
// over-requesting is merely wasteful. Zero and sub-millisecond durations
// map to PeriodMin; anything at or beyond PeriodMax milliseconds
// (including values that would overflow) saturates to PeriodMax.
func FromDuration(d time.Duration) Period {
	if d <= 0 {
		return PeriodMin
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms >= int64(PeriodMax) {
		return PeriodMax
	}
	return Period(ms)
}

// Duration returns the class granularity as a time.Duration.
func (p Period) Duration() time.Duration {
	return time.Duration(p) * time.Millisecond
}

// Elevated reports whether the class actually requests elevation.
func (p Period) Elevated() bool {
	return p >= PeriodMin && p < PeriodMax
}

func (p Period) String() string {
	switch {
	case p == PeriodNone:
		return "none"
	case p >= PeriodMax:
		return "disabled"
	default:
		return p.Duration().String()
	}
}
