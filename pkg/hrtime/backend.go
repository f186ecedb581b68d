package hrtime

import (
	"fmt"
	"time"
)

// Backend applies an elevated timer policy to the operating system.
// Start and Stop are paired 1:1 for the same class. Implementations do
// not need to be safe for concurrent use; the registry serializes calls.
type Backend interface {
	// Start raises the OS timer resolution to at least the given class.
	Start(p Period) error
	// Stop reverses the effect of the matching Start, restoring the
	// pre-elevation baseline where the platform requires it.
	Stop(p Period) error
}

// noopBackend is used on platforms without an elevation mechanism. The
// registry bookkeeping is unchanged; it simply has no external effect.
type noopBackend struct{}

func (noopBackend) Start(Period) error { return nil }
func (noopBackend) Stop(Period) error  { return nil }

// newBackend builds the platform backend. Variable so tests can
// substitute a counting fake underneath the shared registry.
var newBackend = newPlatformBackend

// Transition records one change of the applied OS policy. From and To
// are PeriodNone when the side of the transition is the OS baseline.
type Transition struct {
	At   time.Time
	From Period
	To   Period
}

// Direction classifies the transition for metrics and the journal.
func (t Transition) Direction() string {
	switch {
	case t.To == PeriodNone:
		return "clear"
	case t.From == PeriodNone:
		return "elevate"
	case t.To < t.From:
		return "raise"
	default:
		return "lower"
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("%v -> %v (%s)", t.From, t.To, t.Direction())
}
