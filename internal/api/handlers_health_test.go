// handlers_health_test.go - Tests for health and queue control handlers
package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/drawmap/backend/internal/queue"
	"github.com/drawmap/backend/internal/testutil"
)

func TestHealthHandler_SetOnlineTogglesQueue(t *testing.T) {
	backend := testutil.NewMockRemote()
	q := queue.New(backend, 5, time.Millisecond, 10*time.Millisecond)
	defer q.Close()
	handler := NewHealthHandler("test", q)

	c, rec := newStoreContext(http.MethodPost, "/api/queue/online", `{"online":false}`)
	if err := handler.HandleSetOnline(c); err != nil {
		t.Fatalf("HandleSetOnline: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats queue.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Online {
		t.Error("queue should report offline after the toggle")
	}
	if q.Online() {
		t.Error("queue still online")
	}

	c, _ = newStoreContext(http.MethodPost, "/api/queue/online", `{"online":true}`)
	if err := handler.HandleSetOnline(c); err != nil {
		t.Fatalf("HandleSetOnline: %v", err)
	}
	if !q.Online() {
		t.Error("queue should be back online")
	}
}
