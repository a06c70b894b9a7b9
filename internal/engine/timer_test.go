package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSectionTimer_CountsDownAndFiresOnce(t *testing.T) {
	var fired atomic.Int32
	timer := NewSectionTimer(3, 5*time.Millisecond, func() {
		fired.Add(1)
	})

	assert.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, 0, timer.Remaining())

	// No auto-restart: give it time to misbehave.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestSectionTimer_RemainingNonIncreasing(t *testing.T) {
	done := make(chan struct{})
	timer := NewSectionTimer(5, 5*time.Millisecond, func() {
		close(done)
	})

	last := timer.Remaining()
	assert.Equal(t, 5, last)

	for {
		select {
		case <-done:
			assert.Equal(t, 0, timer.Remaining())
			return
		default:
			current := timer.Remaining()
			assert.LessOrEqual(t, current, last)
			last = current
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSectionTimer_StopPreventsFiring(t *testing.T) {
	var fired atomic.Int32
	timer := NewSectionTimer(2, 10*time.Millisecond, func() {
		fired.Add(1)
	})

	timer.Stop()
	timer.Stop() // idempotent

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestSectionTimer_RemainingNeverNegative(t *testing.T) {
	done := make(chan struct{})
	timer := NewSectionTimer(1, time.Millisecond, func() {
		close(done)
	})

	<-done
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, timer.Remaining())
}
