package hrtime

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestPeriodSetMinTracksCounts(t *testing.T) {
	var s periodSet
	assert.Equal(t, s.min(), PeriodNone)

	s.add(Period(4))
	assert.Equal(t, s.min(), Period(4))

	s.add(Period(1))
	s.add(Period(1))
	assert.Equal(t, s.min(), Period(1))

	s.remove(Period(1))
	assert.Equal(t, s.min(), Period(1), "one 1ms request still outstanding")

	s.remove(Period(1))
	assert.Equal(t, s.min(), Period(4))

	s.remove(Period(4))
	assert.Equal(t, s.min(), PeriodNone)
}

func TestPeriodSetIgnoresDisabled(t *testing.T) {
	var s periodSet
	s.add(PeriodMax)
	assert.Equal(t, s.min(), PeriodNone)
	// removing an untracked class is fine too
	s.remove(PeriodMax)
	assert.Equal(t, s.min(), PeriodNone)
}

func TestPeriodSetUnderflowPanics(t *testing.T) {
	var s periodSet
	s.add(Period(2))
	s.remove(Period(2))

	defer func() {
		assert.Assert(t, recover() != nil, "expected panic on count underflow")
	}()
	s.remove(Period(2))
}
