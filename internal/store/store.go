// Package store owns the in-memory entity tree. All mutation goes through
// its API; the editor and the persistence queue never write entity fields
// directly.
package store

import (
	"fmt"
	"sync"

	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/models"
)

// OwnerKind identifies which entity type a region set hangs off.
type OwnerKind string

const (
	OwnerProject OwnerKind = "project"
	OwnerFloor   OwnerKind = "floor"
)

// OwnerRef addresses the project or floor whose regions are being edited.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func (o OwnerRef) String() string {
	return string(o.Kind) + "/" + o.ID
}

// Store is the single mutation surface over a Dataset.
type Store struct {
	mu    sync.RWMutex
	data  *models.Dataset
	alloc *idalloc.Allocator

	// descendant child-key sets per project, rebuilt lazily after any
	// hierarchy mutation instead of on every read
	descendants map[string][]models.ChildKey
}

// New wraps a dataset. Every ID already present in the tree is reserved with
// the allocator so in-session allocations cannot collide with persisted ones.
func New(data *models.Dataset, alloc *idalloc.Allocator) *Store {
	if data.Images == nil {
		data.Images = make(map[string]*models.Image)
	}
	s := &Store{data: data, alloc: alloc}
	s.reserveAll()
	return s
}

func (s *Store) reserveAll() {
	for _, t := range s.data.Types {
		s.alloc.Reserve(t.ID)
	}
	for _, st := range s.data.Statuses {
		s.alloc.Reserve(st.ID)
	}
	for _, c := range s.data.Colors {
		s.alloc.Reserve(c.ID)
	}
	for _, p := range s.data.Projects {
		s.alloc.Reserve(p.ID)
		for _, f := range p.Floors {
			s.alloc.Reserve(f.ID)
		}
	}
	s.data.EachRegion(func(_ any, r *models.Region) {
		s.alloc.Reserve(r.ID)
	})
}

// Dataset returns the underlying dataset. Callers must treat it as read-only.
func (s *Store) Dataset() *models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Project returns a project by ID.
func (s *Store) Project(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.data.ProjectByID(id)
	if p == nil {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return p, nil
}

// Floor returns a floor by ID.
func (s *Store) Floor(id string) (*models.Floor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, _ := s.data.FloorByID(id)
	if f == nil {
		return nil, fmt.Errorf("floor not found: %s", id)
	}
	return f, nil
}

// OwnerExists reports whether the referenced owner is present.
func (s *Store) OwnerExists(ref OwnerRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch ref.Kind {
	case OwnerProject:
		return s.data.ProjectByID(ref.ID) != nil
	case OwnerFloor:
		f, _ := s.data.FloorByID(ref.ID)
		return f != nil
	}
	return false
}

// AddProject creates a project with a fresh ID. An invalid parent reference
// is cleared rather than rejected.
func (s *Store) AddProject(name, typeID, parentID string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" && s.data.ProjectByID(parentID) == nil {
		parentID = ""
	}
	p := &models.Project{
		ID:       s.alloc.Next(idalloc.KindProject),
		Name:     name,
		TypeID:   typeID,
		ParentID: parentID,
		Floors:   []*models.Floor{},
		Regions:  []*models.Region{},
	}
	s.data.Projects = append(s.data.Projects, p)
	s.refreshShortcodesLocked()
	s.invalidateHierarchyLocked()
	return p, nil
}

// AddFloor creates a floor under the given project.
func (s *Store) AddFloor(projectID, name string) (*models.Floor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.data.ProjectByID(projectID)
	if p == nil {
		return nil, fmt.Errorf("project not found: %s", projectID)
	}
	f := &models.Floor{
		ID:      s.alloc.Next(idalloc.KindFloor),
		Name:    name,
		Regions: []*models.Region{},
	}
	p.Floors = append(p.Floors, f)
	s.refreshShortcodesLocked()
	s.sortFloorsLocked(p)
	s.invalidateHierarchyLocked()
	return f, nil
}

// AddRegion creates a region under the given owner. Region IDs come from the
// global region counter, so regions created under different owners in the
// same session never collide.
func (s *Store) AddRegion(ref OwnerRef, label string) (*models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, err := s.ownerRegionsLocked(ref)
	if err != nil {
		return nil, err
	}
	r := &models.Region{
		ID:    s.alloc.Next(idalloc.KindRegion),
		Label: label,
		Meta:  models.RegionMeta{StrokeWidth: 2, StrokeOpacity: 100, FillOpacity: 40},
	}
	s.setOwnerRegionsLocked(ref, append(regions, r))
	return r, nil
}

// DeleteProject removes a project. Its child projects are re-rooted, every
// region child reference pointing at it or its floors is pruned, and its
// image associations are dropped.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.data.ProjectByID(id)
	if p == nil {
		return fmt.Errorf("project not found: %s", id)
	}

	keep := s.data.Projects[:0]
	for _, q := range s.data.Projects {
		if q.ID != id {
			keep = append(keep, q)
		}
	}
	s.data.Projects = keep

	for _, q := range s.data.Projects {
		if q.ParentID == id {
			q.ParentID = ""
		}
	}

	s.pruneChildRefLocked(models.MapKey(id))
	delete(s.data.Images, models.ImageKey(string(OwnerProject), id))
	for _, f := range p.Floors {
		s.pruneChildRefLocked(models.LocationKey(f.ID))
		delete(s.data.Images, models.ImageKey(string(OwnerFloor), f.ID))
	}
	s.invalidateHierarchyLocked()
	return nil
}

// DeleteFloor removes a floor, pruning child references and images pointing
// at it.
func (s *Store) DeleteFloor(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, p := s.data.FloorByID(id)
	if f == nil {
		return fmt.Errorf("floor not found: %s", id)
	}

	keep := p.Floors[:0]
	for _, g := range p.Floors {
		if g.ID != id {
			keep = append(keep, g)
		}
	}
	p.Floors = keep

	s.pruneChildRefLocked(models.LocationKey(id))
	delete(s.data.Images, models.ImageKey(string(OwnerFloor), id))
	s.invalidateHierarchyLocked()
	return nil
}

// DeleteRegion removes a region from its owner.
func (s *Store) DeleteRegion(ref OwnerRef, regionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regions, err := s.ownerRegionsLocked(ref)
	if err != nil {
		return err
	}
	for i, r := range regions {
		if r.ID == regionID {
			s.setOwnerRegionsLocked(ref, append(regions[:i], regions[i+1:]...))
			return nil
		}
	}
	return fmt.Errorf("region not found: %s", regionID)
}

// Reparent moves a project under a new parent. Self-references and longer
// cycles (A -> B -> A) are both rejected by walking the would-be ancestor
// chain before committing.
func (s *Store) Reparent(projectID, parentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.data.ProjectByID(projectID)
	if p == nil {
		return fmt.Errorf("project not found: %s", projectID)
	}
	if parentID != "" {
		if parentID == projectID {
			return fmt.Errorf("project cannot be its own parent")
		}
		if s.data.ProjectByID(parentID) == nil {
			return fmt.Errorf("parent project not found: %s", parentID)
		}
		for anc := parentID; anc != ""; {
			if anc == projectID {
				return fmt.Errorf("re-parenting %s under %s would create a cycle", projectID, parentID)
			}
			next := s.data.ProjectByID(anc)
			if next == nil {
				break
			}
			anc = next.ParentID
		}
	}

	p.ParentID = parentID
	s.invalidateHierarchyLocked()
	return nil
}

// OwnerRegions returns a deep copy of the owner's regions, for editor use.
func (s *Store) OwnerRegions(ref OwnerRef) ([]*models.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regions, err := s.ownerRegionsLocked(ref)
	if err != nil {
		return nil, err
	}
	return models.CloneRegions(regions), nil
}

// ReplaceOwnerRegions installs a new region set on the owner wholesale, the
// way a save replaces the full subtree. New region IDs are reserved.
func (s *Store) ReplaceOwnerRegions(ref OwnerRef, regions []*models.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownerRegionsLocked(ref); err != nil {
		return err
	}
	for _, r := range regions {
		s.alloc.Reserve(r.ID)
	}
	s.setOwnerRegionsLocked(ref, models.CloneRegions(regions))
	return nil
}

// SetImage records an image association under its entity-scoped key.
func (s *Store) SetImage(key string, img *models.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Images[key] = img
}

// ApplyImageResult reconciles a saveImage response with the optimistic
// placeholder recorded at upload time. A response without an image keeps the
// placeholder in place instead of clearing the association.
func (s *Store) ApplyImageResult(key string, resolved *models.Image) *models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resolved == nil {
		return s.data.Images[key]
	}
	s.data.Images[key] = resolved
	return resolved
}

// Image returns the image associated with the given key, if any.
func (s *Store) Image(key string) *models.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Images[key]
}

func (s *Store) ownerRegionsLocked(ref OwnerRef) ([]*models.Region, error) {
	switch ref.Kind {
	case OwnerProject:
		if p := s.data.ProjectByID(ref.ID); p != nil {
			return p.Regions, nil
		}
	case OwnerFloor:
		if f, _ := s.data.FloorByID(ref.ID); f != nil {
			return f.Regions, nil
		}
	}
	return nil, fmt.Errorf("owner not found: %s", ref)
}

func (s *Store) setOwnerRegionsLocked(ref OwnerRef, regions []*models.Region) {
	switch ref.Kind {
	case OwnerProject:
		if p := s.data.ProjectByID(ref.ID); p != nil {
			p.Regions = regions
		}
	case OwnerFloor:
		if f, _ := s.data.FloorByID(ref.ID); f != nil {
			f.Regions = regions
		}
	}
}

func (s *Store) pruneChildRefLocked(key models.ChildKey) {
	s.data.EachRegion(func(_ any, r *models.Region) {
		r.RemoveChild(key)
	})
}
