package filter

import (
	"sync"
	"time"
)

// Debouncer delays a call until input activity pauses. Each Debounce call
// cancels the pending one and reschedules.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
	duration time.Duration
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn to run after the quiet period unless another
// Debounce, Cancel or Immediate call happens first.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.duration, func() {
		// A timer that already fired cannot be stopped; the sequence
		// check drops it if it was superseded meanwhile.
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops any pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Immediate cancels any pending call and runs fn now.
func (d *Debouncer) Immediate(fn func()) {
	d.Cancel()
	fn()
}

// SearchInput models a free-text search box: keystrokes are debounced,
// Enter applies immediately.
type SearchInput struct {
	deb   *Debouncer
	apply func(string)

	mu    sync.Mutex
	value string
}

// NewSearchInput returns a search box that calls apply with the current
// text once typing pauses for delay.
func NewSearchInput(delay time.Duration, apply func(value string)) *SearchInput {
	return &SearchInput{deb: NewDebouncer(delay), apply: apply}
}

// Type records the box's new text and reschedules the pending apply.
func (s *SearchInput) Type(value string) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	s.deb.Debounce(s.fire)
}

// Enter applies the current text now and cancels the pending apply.
func (s *SearchInput) Enter() {
	s.deb.Immediate(s.fire)
}

// Value returns the box's current text.
func (s *SearchInput) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Clear empties the box without applying.
func (s *SearchInput) Clear() {
	s.deb.Cancel()
	s.mu.Lock()
	s.value = ""
	s.mu.Unlock()
}

// Stop cancels any pending apply.
func (s *SearchInput) Stop() { s.deb.Cancel() }

func (s *SearchInput) fire() {
	s.apply(s.Value())
}
