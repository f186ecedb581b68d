//go:build windows

package hrtime

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// The Go runtime's timer granularity on Windows is ~15.6ms by default.
// winmm's timeBeginPeriod lowers the global interrupt period; calls are
// reference counted by the OS and must be paired with timeEndPeriod for
// the same period value.
var (
	winmm               = windows.NewLazySystemDLL("winmm.dll")
	procTimeBeginPeriod = winmm.NewProc("timeBeginPeriod")
	procTimeEndPeriod   = winmm.NewProc("timeEndPeriod")
)

// TIMERR_NOERROR
const timerrNoError = 0

type winmmBackend struct{}

func newPlatformBackend() Backend { return winmmBackend{} }

func (winmmBackend) Start(p Period) error {
	r1, _, _ := procTimeBeginPeriod.Call(uintptr(p))
	if r1 != timerrNoError {
		return fmt.Errorf("timeBeginPeriod(%d) returned %d", p, r1)
	}
	return nil
}

func (winmmBackend) Stop(p Period) error {
	r1, _, _ := procTimeEndPeriod.Call(uintptr(p))
	if r1 != timerrNoError {
		return fmt.Errorf("timeEndPeriod(%d) returned %d", p, r1)
	}
	return nil
}
