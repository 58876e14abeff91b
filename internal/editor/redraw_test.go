package editor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRedrawCoalescesWithinFrame(t *testing.T) {
	var fired atomic.Int32
	r := NewRedraw(20*time.Millisecond, func() { fired.Add(1) })
	defer r.Close()

	// A burst of invalidations inside one frame window.
	for i := 0; i < 100; i++ {
		r.Invalidate()
	}

	time.Sleep(35 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expected exactly 1 repaint for the burst, got %d", got)
	}
}

func TestRedrawFiresAgainAfterNewInvalidate(t *testing.T) {
	var fired atomic.Int32
	r := NewRedraw(10*time.Millisecond, func() { fired.Add(1) })
	defer r.Close()

	r.Invalidate()
	time.Sleep(25 * time.Millisecond)
	r.Invalidate()
	time.Sleep(25 * time.Millisecond)

	if got := fired.Load(); got != 2 {
		t.Errorf("expected 2 repaints, got %d", got)
	}
}

func TestRedrawIdleFramesDoNotFire(t *testing.T) {
	var fired atomic.Int32
	r := NewRedraw(5*time.Millisecond, func() { fired.Add(1) })
	defer r.Close()

	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("expected no repaints while clean, got %d", got)
	}
}
