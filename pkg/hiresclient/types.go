package hiresclient

import "time"

// RemoteHandle is what the SDK returns on successful acquire. Consumers
// pass it back to Renew/Update/Release.
type RemoteHandle struct {
	HandleID      string
	ClassMS       int64
	Elevated      bool
	LeaseExpiryMS int64 // server-provided expiry; useful for debugging/telemetry
}

// Resolution is the daemon's current arbitration state.
type Resolution struct {
	ActiveClassMS int64
	Elevated      bool
	LiveHandles   int
	RemoteHandles int
}

// HeartbeatOptions controls renew behavior.
type HeartbeatOptions struct {
	Interval time.Duration // required; typically TTL/3
	ExtendBy time.Duration // required; typically TTL
}
