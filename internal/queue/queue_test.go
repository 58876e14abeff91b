package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/remote"
	"github.com/drawmap/backend/internal/testutil"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestQueue(m *testutil.MockRemote) *Queue {
	return New(m, 5, time.Millisecond, 10*time.Millisecond)
}

func TestQueueDeliversInOrder(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	q.Set("dm-types", json.RawMessage(`[]`))
	q.Set("dm-statuses", json.RawMessage(`[]`))
	q.Remove("dm-colors")

	waitFor(t, func() bool { return len(m.Calls()) == 3 })

	calls := m.Calls()
	want := []string{"set dm-types", "set dm-statuses", "remove dm-colors"}
	for i, c := range want {
		if calls[i] != c {
			t.Errorf("call %d = %q, want %q", i, calls[i], c)
		}
	}
}

func TestQueueRetriesNetworkErrors(t *testing.T) {
	m := testutil.NewMockRemote()
	m.FailNext(2, errors.New("connection refused"))
	q := newTestQueue(m)
	defer q.Close()

	q.Set("dm-projects", json.RawMessage(`[]`))

	waitFor(t, func() bool { return m.Data("dm-projects") != nil })

	if calls := m.Calls(); len(calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(calls))
	}
	if stats := q.Stats(); stats.Dropped != 0 || stats.Pending != 0 {
		t.Errorf("unexpected stats after recovery: %+v", stats)
	}
}

func TestQueueDropsAfterAttemptLimit(t *testing.T) {
	m := testutil.NewMockRemote()
	m.FailNext(10, errors.New("connection refused"))
	q := newTestQueue(m)
	defer q.Close()

	q.Set("dm-projects", json.RawMessage(`[]`))

	waitFor(t, func() bool { return q.Stats().Dropped == 1 })

	if calls := m.Calls(); len(calls) != 5 {
		t.Errorf("expected 5 attempts before drop, got %d", len(calls))
	}
	if stats := q.Stats(); stats.Pending != 0 {
		t.Errorf("dropped item left in queue: %+v", stats)
	}
}

func TestQueueProtocolErrorDropsImmediately(t *testing.T) {
	m := testutil.NewMockRemote()
	m.FailNext(1, &remote.ProtocolError{Status: 400, Code: "bad_key", Message: "invalid key"})
	q := newTestQueue(m)
	defer q.Close()

	q.Set("bogus", json.RawMessage(`{}`))

	waitFor(t, func() bool { return q.Stats().Dropped == 1 })

	if calls := m.Calls(); len(calls) != 1 {
		t.Errorf("protocol errors should not retry, got %d attempts", len(calls))
	}
}

func TestQueueHoldsWhileOffline(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	q.SetOnline(false)
	q.Set("dm-projects", json.RawMessage(`[]`))
	q.Set("dm-types", json.RawMessage(`[]`))

	time.Sleep(30 * time.Millisecond)
	if len(m.Calls()) != 0 {
		t.Fatalf("offline queue dispatched %d calls", len(m.Calls()))
	}
	if stats := q.Stats(); stats.Pending != 2 {
		t.Fatalf("pending = %d, want 2", stats.Pending)
	}

	q.SetOnline(true)
	waitFor(t, func() bool { return q.Stats().Pending == 0 })

	if len(m.Calls()) != 2 {
		t.Errorf("expected 2 calls after drain, got %d", len(m.Calls()))
	}
}

func TestQueueNotifiesListeners(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	statsCh := make(chan Stats, 16)
	q.Subscribe(func(s Stats) {
		select {
		case statsCh <- s:
		default:
		}
	})

	q.SetOnline(false)
	q.Set("dm-projects", json.RawMessage(`[]`))

	var sawPending bool
	deadline := time.After(time.Second)
	for !sawPending {
		select {
		case s := <-statsCh:
			if s.Pending == 1 && !s.Online {
				sawPending = true
			}
		case <-deadline:
			t.Fatal("listener never saw pending item")
		}
	}
}

func TestQueueTracksConnectivityFromTransport(t *testing.T) {
	m := testutil.NewMockRemote()
	m.FailNext(2, errors.New("connection refused"))
	q := newTestQueue(m)
	defer q.Close()

	if !q.Online() {
		t.Fatal("queue should start online")
	}

	var mu sync.Mutex
	var seen []bool
	q.Subscribe(func(s Stats) {
		mu.Lock()
		seen = append(seen, s.Online)
		mu.Unlock()
	})

	q.Set("dm-projects", json.RawMessage(`[]`))
	waitFor(t, func() bool { return m.Data("dm-projects") != nil })

	// A failed attempt flips the queue offline; the delivery that
	// eventually lands flips it back.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		wentOffline := false
		for _, online := range seen {
			if !online {
				wentOffline = true
			} else if wentOffline {
				return true
			}
		}
		return false
	})

	if !q.Online() {
		t.Error("queue should be back online after a successful delivery")
	}
}

func TestQueueOfflineOverridesObservedConnectivity(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	q.SetOnline(false)
	q.Set("dm-types", json.RawMessage(`[]`))

	time.Sleep(30 * time.Millisecond)
	if len(m.Calls()) != 0 {
		t.Fatal("explicit offline must hold deliveries even when the remote is reachable")
	}
	if q.Online() {
		t.Error("Online() should report false while held offline")
	}
}

func TestMigrateOfflineReturnsQueuedMarker(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	q.SetOnline(false)
	res, err := q.Migrate(context.Background(), map[string]json.RawMessage{
		models.KeyProjects: json.RawMessage(`[]`),
	})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !res.Queued {
		t.Fatal("offline migrate should report queued")
	}

	q.SetOnline(true)
	waitFor(t, func() bool { return m.Data(models.KeyProjects) != nil })
}

func TestMigrateOnlineRunsSynchronously(t *testing.T) {
	m := testutil.NewMockRemote()
	m.MigrateResult = &remote.MigrateResult{Imported: 3}
	q := newTestQueue(m)
	defer q.Close()

	res, err := q.Migrate(context.Background(), map[string]json.RawMessage{
		models.KeyTypes: json.RawMessage(`[]`),
	})
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if res.Queued || res.Imported != 3 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSaveImageNilResultReachesCallback(t *testing.T) {
	m := testutil.NewMockRemote()
	q := newTestQueue(m)
	defer q.Close()

	done := make(chan *models.Image, 1)
	q.SaveImage(remote.ImageRequest{Key: models.ImageKey("project", "project-1"), EntityID: "project-1", AttachmentID: "42"}, func(img *models.Image) {
		done <- img
	})

	select {
	case img := <-done:
		if img != nil {
			t.Errorf("expected nil image, got %+v", img)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
