package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// SectionTimer is a single-owner countdown for the active section. It
// decrements once per tick and fires its timeout callback exactly once on
// reaching zero, then stops. Replacing the active section destroys the
// timer entirely; unused time is never banked.
type SectionTimer struct {
	tick      time.Duration
	remaining atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
	timeout   func()
}

// NewSectionTimer starts a countdown of limitSeconds. The timeout callback
// runs on the timer's goroutine; callers are expected to hand it off to
// their own event stream.
func NewSectionTimer(limitSeconds int, tick time.Duration, timeout func()) *SectionTimer {
	t := &SectionTimer{
		tick:    tick,
		stop:    make(chan struct{}),
		timeout: timeout,
	}
	t.remaining.Store(int64(limitSeconds))
	go t.run()
	return t
}

func (t *SectionTimer) run() {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if t.remaining.Add(-1) <= 0 {
				t.remaining.Store(0)
				t.timeout()
				return
			}
		}
	}
}

// Stop cancels the countdown. Safe to call more than once; a stopped
// timer never fires.
func (t *SectionTimer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Remaining returns the seconds left on the countdown.
func (t *SectionTimer) Remaining() int {
	r := t.remaining.Load()
	if r < 0 {
		return 0
	}
	return int(r)
}
