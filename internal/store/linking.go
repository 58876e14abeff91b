package store

import (
	"fmt"

	"github.com/drawmap/backend/internal/models"
)

// ToggleChild links or unlinks a child key on a region. A "map" key cascades
// the same state to the full transitive descendant set of that map (all
// descendant maps and all their floors); a "location" key affects only
// itself. Reports whether the region actually changed.
func (s *Store) ToggleChild(ref OwnerRef, regionID string, key models.ChildKey, checked bool) (bool, error) {
	kind, id, err := key.Parse()
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	regions, err := s.ownerRegionsLocked(ref)
	if err != nil {
		return false, err
	}
	var region *models.Region
	for _, r := range regions {
		if r.ID == regionID {
			region = r
			break
		}
	}
	if region == nil {
		return false, fmt.Errorf("region not found: %s", regionID)
	}

	keys := []models.ChildKey{key}
	if kind == models.ChildKindMap {
		keys = s.descendantKeysLocked(id)
	}

	changed := false
	for _, k := range keys {
		if checked {
			if region.AddChild(k) {
				changed = true
			}
		} else {
			if region.RemoveChild(k) {
				changed = true
			}
		}
	}
	return changed, nil
}
