package audio

import (
	"sync"
	"time"
)

// Scheduler is the periodic timer primitive driving the sequencer.
type Scheduler interface {
	// Arm (re)starts the timer, calling tick every interval.
	Arm(interval time.Duration, tick func())
	// Cancel stops the timer. No tick starts after Cancel returns.
	Cancel()
}

// Timer is a Scheduler backed by a time.Ticker running in its own
// goroutine. Ticks are delivered on that goroutine.
type Timer struct {
	// interval is the duration between ticks.
	interval time.Duration

	// running indicates whether the timer is currently armed.
	running bool

	// stopCh is closed to signal the current ticker goroutine to stop.
	stopCh chan struct{}

	// doneCh is closed when the current ticker goroutine has returned.
	doneCh chan struct{}

	// mu protects the timer state.
	mu sync.Mutex
}

// NewTimer creates a disarmed timer.
func NewTimer() *Timer {
	return &Timer{}
}

// Arm starts the timer with a new interval, replacing a running one.
// Non-positive intervals leave the timer disarmed.
func (t *Timer) Arm(interval time.Duration, tick func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.interval = interval
	if interval <= 0 {
		return
	}

	t.running = true
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	go t.run(time.NewTicker(interval), tick, t.stopCh, t.doneCh)
}

// run is the ticker loop. It owns the ticker and the channels it was
// started with, so a re-armed timer never shares them.
func (t *Timer) run(ticker *time.Ticker, tick func(), stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Stop と同時に発火した場合は捨てる
			select {
			case <-stopCh:
				return
			default:
			}
			tick()
		}
	}
}

// Cancel stops the timer. It does not wait for a tick that is already
// running, so it may be called from inside tick.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if !t.running {
		return
	}
	t.running = false
	close(t.stopCh)
	t.stopCh = nil
}

// Wait blocks until the last started ticker goroutine has returned. It must
// not be called from inside tick.
func (t *Timer) Wait() {
	t.mu.Lock()
	doneCh := t.doneCh
	t.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
}

// IsRunning returns whether the timer is currently armed.
func (t *Timer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval returns the last armed interval.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// StepClock is a Scheduler driven by explicit time steps instead of wall
// time. Ticks run synchronously inside Advance, on the caller's goroutine.
type StepClock struct {
	interval time.Duration
	tick     func()
	elapsed  time.Duration
	armed    bool
	mu       sync.Mutex
}

// NewStepClock creates a disarmed step clock.
func NewStepClock() *StepClock {
	return &StepClock{}
}

// Arm starts ticking every interval of advanced time.
func (c *StepClock) Arm(interval time.Duration, tick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	c.tick = tick
	c.elapsed = 0
	c.armed = interval > 0
}

// Cancel disarms the clock.
func (c *StepClock) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
}

// Armed reports whether the clock is armed.
func (c *StepClock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Advance moves time forward by d and fires every tick that falls due. A
// tick may cancel or re-arm the clock.
func (c *StepClock) Advance(d time.Duration) int {
	fired := 0
	c.mu.Lock()
	c.elapsed += d
	for c.armed && c.elapsed >= c.interval {
		c.elapsed -= c.interval
		tick := c.tick
		c.mu.Unlock()
		tick()
		fired++
		c.mu.Lock()
	}
	if !c.armed {
		c.elapsed = 0
	}
	c.mu.Unlock()
	return fired
}
