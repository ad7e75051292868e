// Package lifecycle holds process-wide pipeline state read by the health
// endpoint.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Phase is the collector pipeline stage.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseBootstrapping
	PhaseMetadataPass
	PhaseSteadyPolling
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseMetadataPass:
		return "metadata-pass"
	case PhaseSteadyPolling:
		return "steady-polling"
	default:
		return "unknown"
	}
}

var (
	shuttingDown  atomic.Bool
	phase         atomic.Int32
	lastPassNanos atomic.Int64
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetPhase records the current pipeline phase.
func SetPhase(p Phase) {
	phase.Store(int32(p))
}

// CurrentPhase returns the last phase set.
func CurrentPhase() Phase {
	return Phase(phase.Load())
}

// RecordPassCompleted stores the completion time of a polling pass.
func RecordPassCompleted(at time.Time) {
	lastPassNanos.Store(at.UnixNano())
}

// LastPassCompleted returns when the most recent pass finished. ok is false
// until the first pass completes.
func LastPassCompleted() (at time.Time, ok bool) {
	n := lastPassNanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// Reset restores initial state. For tests only.
func Reset() {
	shuttingDown.Store(false)
	phase.Store(int32(PhaseStarting))
	lastPassNanos.Store(0)
}
