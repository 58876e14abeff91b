package editor

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates one animation frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Redraw coalesces repaint requests: any number of Invalidate calls within
// one frame produce at most one notification.
type Redraw struct {
	mu     sync.Mutex
	dirty  bool
	notify func()
	stop   chan struct{}
	once   sync.Once
}

// NewRedraw starts a frame loop that calls notify at most once per interval
// while dirty.
func NewRedraw(interval time.Duration, notify func()) *Redraw {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	r := &Redraw{notify: notify, stop: make(chan struct{})}
	go r.loop(interval)
	return r
}

// Invalidate marks the surface dirty. Safe to call from any goroutine.
func (r *Redraw) Invalidate() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

// Close stops the frame loop.
func (r *Redraw) Close() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Redraw) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			fire := r.dirty
			r.dirty = false
			r.mu.Unlock()
			if fire && r.notify != nil {
				r.notify()
			}
		}
	}
}
