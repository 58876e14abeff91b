package queue

import (
	"encoding/json"
	"fmt"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/store"
)

// Persister binds editor saves to the queue: every save serializes the
// current project hierarchy and enqueues it under the projects key, so
// geometry edits reach the remote store through the same retry path as
// every other write.
type Persister struct {
	store *store.Store
	queue *Queue
}

// NewPersister creates a persister over the given model store and queue.
func NewPersister(s *store.Store, q *Queue) *Persister {
	return &Persister{store: s, queue: q}
}

// SaveOwner persists the full project list after an edit to the given owner.
// The save is whole-document: the remote store keeps one value per key, not
// per-owner deltas.
func (p *Persister) SaveOwner(ref store.OwnerRef) error {
	projects := p.store.SortedProjects()
	raw, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("serialize projects for %s: %w", ref, err)
	}
	p.queue.Set(models.KeyProjects, json.RawMessage(raw))
	return nil
}

// SaveDataset persists every dataset key. Used after the bootstrap repair
// pass, where ID migrations touch types, statuses, colors and image
// references together: re-saving only the project tree would leave the
// lookup tables holding the pre-migration IDs.
func (p *Persister) SaveDataset() error {
	data := p.store.Dataset()
	keyed := map[string]interface{}{
		models.KeyProjects: p.store.SortedProjects(),
		models.KeyTypes:    data.Types,
		models.KeyStatuses: data.Statuses,
		models.KeyColors:   data.Colors,
		models.KeyImages:   data.Images,
	}
	for key, value := range keyed {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", key, err)
		}
		p.queue.Set(key, json.RawMessage(raw))
	}
	return nil
}
