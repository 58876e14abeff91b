// Package remote defines the persistence protocol the editor saves through:
// a keyed remote store with bulk migration and image association, plus the
// HTTP client implementation.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/drawmap/backend/internal/models"
)

// Store is the remote persistence protocol.
type Store interface {
	// List returns the full keyed dataset.
	List(ctx context.Context) (map[string]json.RawMessage, error)
	// Get reads one key. A missing key yields a nil value and no error.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// Set writes one key.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Remove deletes one key.
	Remove(ctx context.Context, key string) error
	// Migrate bulk-imports legacy locally-stored keyed data.
	Migrate(ctx context.Context, payload map[string]json.RawMessage) (*MigrateResult, error)
	// SaveImage associates an uploaded attachment with an entity-scoped key
	// and returns the resolved image descriptor. The image may be nil when
	// the remote end could not resolve the attachment; callers keep their
	// optimistic placeholder in that case.
	SaveImage(ctx context.Context, req ImageRequest) (*models.Image, error)
}

// ImageRequest associates an attachment with an entity-scoped key
// ("project__<id>" / "floor__<id>").
type ImageRequest struct {
	Key          string `json:"key"`
	EntityID     string `json:"entityId"`
	AttachmentID string `json:"attachmentId"`
}

// MigrateResult reports the outcome of a bulk import. Queued is set when the
// import was performed offline and will complete later.
type MigrateResult struct {
	Imported int  `json:"imported"`
	Queued   bool `json:"queued,omitempty"`
}

// ProtocolError is an application-level rejection from the remote end. It is
// never retried; only transport failures go through the retry queue.
type ProtocolError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNetworkError reports whether err is a network-level failure (as opposed
// to an application-level rejection).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProtocolError
	return !errors.As(err, &pe)
}
