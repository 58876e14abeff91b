package store

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/drawmap/backend/internal/models"
)

// nameCollator compares entity names locale-aware and numeric-aware, so
// "2NP" sorts before "3NP" and before "10NP".
var nameCollator = collate.New(language.Und, collate.Numeric, collate.IgnoreCase)

// DescendantKeys returns the full transitive child-key set under a project:
// the project's own map key, every descendant map's key, and the location key
// of every floor they carry. The set is cached per project and rebuilt only
// after a hierarchy mutation.
func (s *Store) DescendantKeys(projectID string) []models.ChildKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descendantKeysLocked(projectID)
}

func (s *Store) descendantKeysLocked(projectID string) []models.ChildKey {
	if s.descendants == nil {
		s.descendants = make(map[string][]models.ChildKey)
	}
	if keys, ok := s.descendants[projectID]; ok {
		return keys
	}

	childrenOf := make(map[string][]*models.Project)
	for _, p := range s.data.Projects {
		if p.ParentID != "" && p.ParentID != p.ID {
			childrenOf[p.ParentID] = append(childrenOf[p.ParentID], p)
		}
	}

	var keys []models.ChildKey
	visited := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		p := s.data.ProjectByID(id)
		if p == nil {
			return
		}
		keys = append(keys, models.MapKey(id))
		for _, f := range p.Floors {
			keys = append(keys, models.LocationKey(f.ID))
		}
		for _, child := range childrenOf[id] {
			walk(child.ID)
		}
	}
	walk(projectID)

	s.descendants[projectID] = keys
	return keys
}

// DirectChildCount counts only the entities one level below a project:
// direct sub-projects plus the project's own floors. This is the display
// badge scope; cascading writes use the full transitive set instead.
func (s *Store) DirectChildCount(projectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.data.ProjectByID(projectID)
	if p == nil {
		return 0
	}
	n := len(p.Floors)
	for _, q := range s.data.Projects {
		if q.ParentID == projectID {
			n++
		}
	}
	return n
}

// SortedProjects returns the projects in topological order: roots first in
// name order, each followed depth-first by its children in name order.
// Projects whose declared parent is missing or self-referential count as
// roots.
func (s *Store) SortedProjects() []*models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortProjects(s.data.Projects)
}

// SortHierarchy orders the full tree in place: projects topologically and
// each project's floors by name. Reports whether anything moved.
func (s *Store) SortHierarchy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortHierarchyLocked()
}

func (s *Store) sortHierarchyLocked() bool {
	sorted := sortProjects(s.data.Projects)
	changed := false
	for i := range sorted {
		if s.data.Projects[i] != sorted[i] {
			changed = true
			break
		}
	}
	s.data.Projects = sorted
	for _, p := range s.data.Projects {
		if s.sortFloorsLocked(p) {
			changed = true
		}
	}
	return changed
}

func (s *Store) sortFloorsLocked(p *models.Project) bool {
	changed := false
	sorted := append([]*models.Floor(nil), p.Floors...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := nameCollator.CompareString(sorted[i].Name, sorted[j].Name); c != 0 {
			return c < 0
		}
		return sorted[i].ID < sorted[j].ID
	})
	for i := range sorted {
		if p.Floors[i] != sorted[i] {
			changed = true
			break
		}
	}
	p.Floors = sorted
	return changed
}

func (s *Store) invalidateHierarchyLocked() {
	s.descendants = nil
}

func sortProjects(projects []*models.Project) []*models.Project {
	ids := make(map[string]bool, len(projects))
	for _, p := range projects {
		ids[p.ID] = true
	}
	isRoot := func(p *models.Project) bool {
		return p.ParentID == "" || p.ParentID == p.ID || !ids[p.ParentID]
	}

	childrenOf := make(map[string][]*models.Project)
	var roots []*models.Project
	for _, p := range projects {
		if isRoot(p) {
			roots = append(roots, p)
		} else {
			childrenOf[p.ParentID] = append(childrenOf[p.ParentID], p)
		}
	}

	byName := func(list []*models.Project) {
		sort.SliceStable(list, func(i, j int) bool {
			if c := nameCollator.CompareString(list[i].Name, list[j].Name); c != 0 {
				return c < 0
			}
			return list[i].ID < list[j].ID
		})
	}
	byName(roots)

	out := make([]*models.Project, 0, len(projects))
	visited := make(map[string]bool)
	var walk func(p *models.Project)
	walk = func(p *models.Project) {
		if visited[p.ID] {
			return
		}
		visited[p.ID] = true
		out = append(out, p)
		kids := childrenOf[p.ID]
		byName(kids)
		for _, k := range kids {
			walk(k)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	// Members of parent cycles are reachable from no root; keep them at the
	// end rather than dropping them.
	for _, p := range projects {
		if !visited[p.ID] {
			walk(p)
		}
	}
	return out
}
