package traffic

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker()
	tr.now = clock.now
	return tr, clock
}

func TestPollErrorRate_Empty(t *testing.T) {
	tr, _ := newTestTracker()
	if errs, total := tr.PollErrorRate(time.Minute); errs != 0 || total != 0 {
		t.Errorf("PollErrorRate() = (%d, %d), want (0, 0)", errs, total)
	}
}

func TestPollErrorRate_CountsWithinWindow(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordPollError()
	clock.advance(10 * time.Minute)
	tr.RecordPollSuccess()
	tr.RecordPollSuccess()
	tr.RecordPollError()

	if errs, total := tr.PollErrorRate(5 * time.Minute); errs != 1 || total != 3 {
		t.Errorf("PollErrorRate(5m) = (%d, %d), want (1, 3)", errs, total)
	}
	if errs, total := tr.PollErrorRate(15 * time.Minute); errs != 2 || total != 4 {
		t.Errorf("PollErrorRate(15m) = (%d, %d), want (2, 4)", errs, total)
	}
}

func TestDenialCount_ExcludedFromPollRate(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordDenied()
	tr.RecordDenied()
	tr.RecordPollSuccess()

	if n := tr.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if _, total := tr.PollErrorRate(time.Minute); total != 1 {
		t.Errorf("PollErrorRate() total = %d, want 1", total)
	}
}

func TestPrune_DropsEntriesPastRetention(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordPollError()
	clock.advance(retention + time.Minute)
	tr.RecordPollSuccess()

	if len(tr.pollFailed) != 0 {
		t.Errorf("pollFailed has %d entries after retention, want 0", len(tr.pollFailed))
	}
}

func TestReset(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordPollSuccess()
	tr.RecordDenied()
	tr.Reset()
	if _, total := tr.PollErrorRate(time.Hour); total != 0 {
		t.Errorf("total after Reset = %d, want 0", total)
	}
	if n := tr.DenialCount(time.Hour); n != 0 {
		t.Errorf("DenialCount after Reset = %d, want 0", n)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	Reset()
	defer Reset()
	RecordPollSuccess()
	RecordPollError()
	RecordDenied()
	if errs, total := PollErrorRate(time.Minute); errs != 1 || total != 2 {
		t.Errorf("PollErrorRate() = (%d, %d), want (1, 2)", errs, total)
	}
	if n := DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}
}
