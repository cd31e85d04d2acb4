package app

import (
	"math"
	"sync"
	"time"

	"quizmaster/internal/domain"
)

const minTimerSeconds = 10

// TimerSeconds returns the countdown length for a session, or 0 when the
// session is untimed. Only test mode with a positive limit is timed.
func TimerSeconds(mode domain.Mode, minutes float64) int {
	if mode != domain.ModeTest || minutes <= 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0
	}
	seconds := int(math.Floor(minutes * 60))
	if seconds < minTimerSeconds {
		seconds = minTimerSeconds
	}
	return seconds
}

// Timer counts a session down one second per tick and fires onExpire exactly
// once when it reaches zero.
type Timer struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	onTick    func(remaining int)
	onExpire  func()

	done      chan struct{}
	stopOnce  sync.Once
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func NewTimer(seconds int, onTick func(remaining int), onExpire func()) *Timer {
	return &Timer{
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
		done:      make(chan struct{}),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			tk := time.NewTicker(d)
			return tk.C, tk.Stop
		},
	}
}

// Start runs the countdown on its own goroutine until expiry or Stop.
func (t *Timer) Start() {
	ticks, stop := t.newTicker(time.Second)
	go func() {
		defer stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticks:
				if !t.Tick() {
					return
				}
			}
		}
	}()
}

// Tick advances the countdown by one second. It returns false once the timer
// is stopped or has expired.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return false
	}
	if t.remaining <= 1 {
		t.remaining = 0
		t.stopped = true
		t.mu.Unlock()
		t.closeDone()
		if t.onTick != nil {
			t.onTick(0)
		}
		if t.onExpire != nil {
			t.onExpire()
		}
		return false
	}
	t.remaining--
	remaining := t.remaining
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(remaining)
	}
	return true
}

// Stop clears the timer; no further ticks or expiry happen.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.closeDone()
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Stopped reports whether the timer was stopped or expired.
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Timer) closeDone() {
	t.stopOnce.Do(func() { close(t.done) })
}
