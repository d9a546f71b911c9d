package engine

import "time"

// AfterFunc schedules fn after d and returns a stop function. The orchestrator
// provides an implementation that runs fn on its own loop, so timer callbacks
// never race with action handling.
type AfterFunc func(d time.Duration, fn func()) (stop func() bool)

// StageTimer is the single armed timer a game carries. It tracks armed-at and
// total duration so it can be paused across a reconnection and resumed with
// the remaining time instead of restarting. A generation counter drops fires
// that were already in flight when the stage moved on.
type StageTimer struct {
	after     AfterFunc
	gen       int
	stop      func() bool
	fn        func()
	armedAt   time.Time
	duration  time.Duration
	remaining time.Duration
	paused    bool
}

func NewStageTimer(after AfterFunc) *StageTimer {
	return &StageTimer{after: after}
}

// Arm cancels any pending fire and schedules fn after d.
func (t *StageTimer) Arm(d time.Duration, fn func()) {
	t.Cancel()
	t.fn = fn
	t.armedAt = time.Now()
	t.duration = d
	gen := t.gen
	t.stop = t.after(d, func() {
		if t.gen != gen {
			return // stale fire, stage already moved on
		}
		t.gen++
		t.stop = nil
		fn()
	})
}

// Cancel discards the pending fire, if any. Safe to call repeatedly.
func (t *StageTimer) Cancel() {
	t.gen++
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	t.paused = false
}

// Pause stops the clock and records how much time was left.
func (t *StageTimer) Pause() {
	if t.stop == nil || t.paused {
		return
	}
	t.gen++
	t.stop()
	t.stop = nil
	t.remaining = t.duration - time.Since(t.armedAt)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.paused = true
}

// Resume re-arms a paused timer with its preserved remaining duration.
func (t *StageTimer) Resume() {
	if !t.paused {
		return
	}
	t.paused = false
	t.Arm(t.remaining, t.fn)
}

// Armed reports whether a fire is pending.
func (t *StageTimer) Armed() bool { return t.stop != nil }

// Paused reports whether the timer is holding a remaining duration.
func (t *StageTimer) Paused() bool { return t.paused }

// Remaining returns the preserved duration of a paused timer.
func (t *StageTimer) Remaining() time.Duration { return t.remaining }
