// mock_remote.go - Mock remote store implementation for testing
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/remote"
)

// MockRemote implements remote.Store for testing. Every call is recorded,
// and FailNext can inject a fixed number of failures to exercise retry
// paths.
type MockRemote struct {
	mu       sync.Mutex
	data     map[string]json.RawMessage
	calls    []string
	failures int
	failErr  error

	// ImageResult is returned by SaveImage when set. Leaving it nil
	// simulates a remote end that sends no image back.
	ImageResult *models.Image

	// MigrateResult is returned by Migrate. When nil a zero result is
	// returned.
	MigrateResult *remote.MigrateResult
}

// NewMockRemote creates an empty mock remote store.
func NewMockRemote() *MockRemote {
	return &MockRemote{data: make(map[string]json.RawMessage)}
}

// FailNext makes the next n mutating calls return err.
func (m *MockRemote) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// Calls returns the recorded call log, newest last.
func (m *MockRemote) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Data returns the stored value for key, or nil.
func (m *MockRemote) Data(key string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

func (m *MockRemote) record(call string) error {
	m.calls = append(m.calls, call)
	if m.failures > 0 {
		m.failures--
		return m.failErr
	}
	return nil
}

func (m *MockRemote) List(ctx context.Context) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("list"); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *MockRemote) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("get " + key); err != nil {
		return nil, err
	}
	return m.data[key], nil
}

func (m *MockRemote) Set(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("set " + key); err != nil {
		return err
	}
	m.data[key] = value
	return nil
}

func (m *MockRemote) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("remove " + key); err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *MockRemote) Migrate(ctx context.Context, payload map[string]json.RawMessage) (*remote.MigrateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("migrate"); err != nil {
		return nil, err
	}
	for k, v := range payload {
		m.data[k] = v
	}
	if m.MigrateResult != nil {
		res := *m.MigrateResult
		return &res, nil
	}
	return &remote.MigrateResult{Imported: len(payload)}, nil
}

func (m *MockRemote) SaveImage(ctx context.Context, req remote.ImageRequest) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("saveImage " + req.Key); err != nil {
		return nil, err
	}
	return m.ImageResult, nil
}
