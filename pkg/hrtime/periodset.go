package hrtime

import "fmt"

// periodSet is a multiset of outstanding requests, one count per
// resolution class in [PeriodMin, PeriodMax). A slot's count equals the
// number of live handles currently holding that class. PeriodMax is never
// tracked: "no elevation wanted" must not keep elevation alive.
type periodSet struct {
	counts [PeriodMax - PeriodMin]uint32
}

func (s *periodSet) add(p Period) {
	if !p.Elevated() {
		return
	}
	s.counts[p-PeriodMin]++
}

// remove decrements the count for p. A slot already at zero means the
// handle bookkeeping is corrupt; continuing would silently desynchronize
// the reference counts, so this panics instead.
func (s *periodSet) remove(p Period) {
	if !p.Elevated() {
		return
	}
	if s.counts[p-PeriodMin] == 0 {
		panic(fmt.Sprintf("hrtime: remove of period %v with zero count", p))
	}
	s.counts[p-PeriodMin]--
}

// min returns the tightest class with a positive count, or PeriodNone.
func (s *periodSet) min() Period {
	for i, c := range s.counts {
		if c > 0 {
			return PeriodMin + Period(i)
		}
	}
	return PeriodNone
}
