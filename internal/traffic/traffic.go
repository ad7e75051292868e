// Package traffic keeps short sliding windows of poll outcomes and API
// rate-limit denials. The health endpoint reads them to decide whether the
// collector is degraded.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept regardless of the window asked for.
const retention = 30 * time.Minute

var defaultTracker = NewTracker()

// RecordPollSuccess records a station poll that fetched an observation.
func RecordPollSuccess() {
	defaultTracker.RecordPollSuccess()
}

// RecordPollError records a station poll that failed to fetch or store.
func RecordPollError() {
	defaultTracker.RecordPollError()
}

// RecordDenied records an API request rejected by the rate limiter.
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// PollErrorRate returns (errors, total) station polls within the window.
func PollErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.PollErrorRate(window)
}

// DenialCount returns the number of rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu          sync.Mutex
	now         func() time.Time
	pollOK      []time.Time
	pollFailed  []time.Time
	deniedTimes []time.Time
}

// NewTracker returns a Tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

func (t *Tracker) RecordPollSuccess() {
	t.record(&t.pollOK)
}

func (t *Tracker) RecordPollError() {
	t.record(&t.pollFailed)
}

func (t *Tracker) RecordDenied() {
	t.record(&t.deniedTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// PollErrorRate returns (errors, total) within the window, where total counts
// successes and errors.
func (t *Tracker) PollErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.pollFailed, cutoff)
	return errCount, errCount + countSince(t.pollOK, cutoff)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.now().Add(-window))
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pollOK = nil
	t.pollFailed = nil
	t.deniedTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Slices are append-only
// in time order so the expired entries are a prefix.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.pollOK)
	prune(&t.pollFailed)
	prune(&t.deniedTimes)
}
