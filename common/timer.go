package common

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"shortsbot/types"
)

// TimerOption configures a Timer
type TimerOption func(*Timer)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) TimerOption {
	return func(t *Timer) { t.now = now }
}

// WithObserver is called with every recorded stage
func WithObserver(fn func(stage string, d time.Duration)) TimerOption {
	return func(t *Timer) { t.observers = append(t.observers, fn) }
}

// Timer records named stage durations for one run.
// At most one stage is open at a time.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	created   time.Time
	open      string
	openedAt  time.Time
	steps     []types.StepTiming
	observers []func(string, time.Duration)
}

// NewTimer starts the run clock
func NewTimer(opts ...TimerOption) *Timer {
	t := &Timer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.created = t.now()
	return t
}

// Begin opens a stage, closing any stage left open
func (t *Timer) Begin(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open != "" {
		t.closeLocked()
	}
	t.open = name
	t.openedAt = t.now()
}

// End closes the open stage and returns its duration; 0 if nothing is open
func (t *Timer) End() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == "" {
		return 0
	}
	return t.closeLocked()
}

// Step times fn as a stage named name
func (t *Timer) Step(name string, fn func() error) error {
	t.Begin(name)
	defer t.End()
	return fn()
}

// Steps returns a copy of the recorded stages in order
func (t *Timer) Steps() []types.StepTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.StepTiming(nil), t.steps...)
}

// Elapsed returns the time since the timer was created
func (t *Timer) Elapsed() time.Duration {
	return t.now().Sub(t.created)
}

// Summary logs every recorded stage and returns the total elapsed time
func (t *Timer) Summary() time.Duration {
	steps := t.Steps()
	total := t.Elapsed()

	width := len("Total")
	for _, s := range steps {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}

	var b strings.Builder
	b.WriteString("⏱️  Stage timings\n")
	for _, s := range steps {
		b.WriteString(fmt.Sprintf("   %-*s %8.1fs\n", width, s.Name, s.Duration.Seconds()))
	}
	b.WriteString(fmt.Sprintf("   %-*s %8.1fs", width, "Total", total.Seconds()))
	log.Print(b.String())
	return total
}

// closeLocked must be called with mu held and a stage open
func (t *Timer) closeLocked() time.Duration {
	d := t.now().Sub(t.openedAt)
	name := t.open
	t.steps = append(t.steps, types.StepTiming{Name: name, Duration: d})
	t.open = ""
	for _, fn := range t.observers {
		fn(name, d)
	}
	return d
}
