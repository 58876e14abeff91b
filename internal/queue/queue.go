// Package queue wraps the remote persistence protocol with offline
// detection, bounded retry and exponential backoff, so edits survive network
// loss instead of failing on the spot.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/remote"
)

// Default retry policy.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
)

// Op identifies what a queued item does when it reaches the remote store.
type Op string

const (
	OpSet       Op = "set"
	OpRemove    Op = "remove"
	OpSaveImage Op = "saveImage"
	OpMigrate   Op = "migrate"
)

// Item is one pending write.
type Item struct {
	Op       Op
	Key      string
	Value    json.RawMessage
	Image    remote.ImageRequest
	Payload  map[string]json.RawMessage
	Attempts int

	// OnImage receives the resolved image descriptor after a successful
	// saveImage. A nil descriptor means the remote end sent no image; the
	// caller's optimistic placeholder stays.
	OnImage func(*models.Image)
}

// Stats is the queue state reported to listeners on every change.
type Stats struct {
	Pending int  `json:"pending"`
	Dropped int  `json:"dropped"`
	Online  bool `json:"online"`
}

// Listener receives queue statistics whenever the queue size, drop count or
// online state changes.
type Listener func(Stats)

// Queue serializes all outbound writes: one request in flight at a time,
// FIFO order, retry with doubling delay on network failure.
type Queue struct {
	mu        sync.Mutex
	items     []*Item
	listeners []Listener
	online    bool
	paused    bool
	dropped   int
	running   bool
	closed    bool

	remote      remote.Store
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	kick chan struct{}
	stop chan struct{}
}

// New creates a queue over the given remote store and starts its worker.
func New(store remote.Store, maxAttempts int, baseDelay, maxDelay time.Duration) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	q := &Queue{
		remote:      store,
		online:      true,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
	go q.worker()
	return q
}

// Close stops the worker. Pending items are abandoned.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stop)
}

// Subscribe registers a listener for queue-size changes.
func (q *Queue) Subscribe(l Listener) {
	q.mu.Lock()
	q.listeners = append(q.listeners, l)
	q.mu.Unlock()
}

// Stats returns a snapshot of the queue state.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *Queue) statsLocked() Stats {
	return Stats{Pending: len(q.items), Dropped: q.dropped, Online: q.online && !q.paused}
}

// SetOnline flips the connectivity state, mirroring the client's own
// online/offline signal. While offline the queue holds everything; coming
// back online drains it immediately. The queue also tracks connectivity on
// its own from observed transport failures and recoveries, so this is a
// hint, not the only source.
func (q *Queue) SetOnline(online bool) {
	q.mu.Lock()
	changed := (q.online && !q.paused) != online
	q.paused = !online
	q.online = online
	q.mu.Unlock()
	if changed {
		q.notify()
	}
	if online {
		q.wake()
	}
}

// Online reports the current connectivity state.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online && !q.paused
}

// Set enqueues a key write.
func (q *Queue) Set(key string, value json.RawMessage) {
	q.enqueue(&Item{Op: OpSet, Key: key, Value: value})
}

// Remove enqueues a key delete.
func (q *Queue) Remove(key string) {
	q.enqueue(&Item{Op: OpRemove, Key: key})
}

// SaveImage enqueues an image association. onImage, when non-nil, receives
// the resolved descriptor after success.
func (q *Queue) SaveImage(req remote.ImageRequest, onImage func(*models.Image)) {
	q.enqueue(&Item{Op: OpSaveImage, Key: req.Key, Image: req, OnImage: onImage})
}

// Migrate performs a bulk import. When online it runs synchronously; when
// offline the payload is queued and a "queued" marker is returned instead of
// a result.
func (q *Queue) Migrate(ctx context.Context, payload map[string]json.RawMessage) (*remote.MigrateResult, error) {
	if !q.Online() {
		q.enqueue(&Item{Op: OpMigrate, Payload: payload})
		return &remote.MigrateResult{Queued: true}, nil
	}
	res, err := q.remote.Migrate(ctx, payload)
	if err != nil {
		if remote.IsNetworkError(err) {
			q.markOffline()
			q.enqueue(&Item{Op: OpMigrate, Payload: payload})
			return &remote.MigrateResult{Queued: true}, nil
		}
		return nil, err
	}
	return res, nil
}

func (q *Queue) enqueue(item *Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.notify()
	q.wake()
}

func (q *Queue) wake() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

func (q *Queue) markOffline() {
	q.mu.Lock()
	changed := q.online
	q.online = false
	q.mu.Unlock()
	if changed {
		q.notify()
	}
}

func (q *Queue) markOnline() {
	q.mu.Lock()
	changed := !q.online
	q.online = true
	q.mu.Unlock()
	if changed {
		q.notify()
	}
}

func (q *Queue) notify() {
	q.mu.Lock()
	stats := q.statsLocked()
	listeners := append([]Listener(nil), q.listeners...)
	q.mu.Unlock()
	for _, l := range listeners {
		l(stats)
	}
}

func (q *Queue) worker() {
	for {
		select {
		case <-q.stop:
			return
		case <-q.kick:
		}
		q.drain()
	}
}

// drain processes items one at a time until the queue is empty or a failure
// schedules a retry.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.paused {
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		q.notify()

		err := q.dispatch(item)
		if err == nil {
			// A delivered item is proof the remote end is reachable again.
			q.markOnline()
			continue
		}

		if !remote.IsNetworkError(err) {
			// Application-level rejection: retrying cannot help.
			fmt.Printf("[Queue] %s %s rejected: %v\n", item.Op, item.Key, err)
			q.recordDrop()
			continue
		}

		item.Attempts++
		if item.Attempts >= q.maxAttempts {
			// Best-effort semantics: after the attempt limit the item is
			// dropped and only logged. The drop counter surfaces it to
			// listeners so a UI can warn about possibly lost edits.
			fmt.Printf("[Queue] dropping %s %s after %d attempts: %v\n", item.Op, item.Key, item.Attempts, err)
			q.recordDrop()
			continue
		}

		q.markOffline()

		delay := q.retryDelay(item.Attempts)
		fmt.Printf("[Queue] %s %s failed (attempt %d), retrying in %s: %v\n", item.Op, item.Key, item.Attempts, delay, err)

		q.mu.Lock()
		q.items = append([]*Item{item}, q.items...)
		q.mu.Unlock()
		q.notify()

		select {
		case <-q.stop:
			return
		case <-q.kick:
			// Back-online signal: retry immediately.
		case <-time.After(delay):
		}
	}
}

// retryDelay doubles per attempt, capped at maxDelay.
func (q *Queue) retryDelay(attempts int) time.Duration {
	delay := q.baseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= q.maxDelay {
			return q.maxDelay
		}
	}
	if delay > q.maxDelay {
		return q.maxDelay
	}
	return delay
}

func (q *Queue) recordDrop() {
	q.mu.Lock()
	q.dropped++
	q.mu.Unlock()
	q.notify()
}

func (q *Queue) dispatch(item *Item) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch item.Op {
	case OpSet:
		return q.remote.Set(ctx, item.Key, item.Value)
	case OpRemove:
		return q.remote.Remove(ctx, item.Key)
	case OpSaveImage:
		img, err := q.remote.SaveImage(ctx, item.Image)
		if err != nil {
			return err
		}
		if item.OnImage != nil {
			item.OnImage(img)
		}
		return nil
	case OpMigrate:
		_, err := q.remote.Migrate(ctx, item.Payload)
		return err
	}
	return fmt.Errorf("unknown queue op: %s", item.Op)
}
