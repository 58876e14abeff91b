package store

import (
	"testing"

	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(&models.Dataset{}, idalloc.New())
}

func TestAddProjectAndFloorAllocatesIDs(t *testing.T) {
	s := newTestStore(t)

	p, err := s.AddProject("Riverside", "", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if p.ID != "project-1" {
		t.Errorf("expected project-1, got %s", p.ID)
	}
	if p.Shortcode != "riverside" {
		t.Errorf("expected shortcode riverside, got %s", p.Shortcode)
	}

	f, err := s.AddFloor(p.ID, "Ground floor")
	if err != nil {
		t.Fatalf("AddFloor: %v", err)
	}
	if f.ID != "floor-1" {
		t.Errorf("expected floor-1, got %s", f.ID)
	}
	if f.Shortcode != "riverside-1" {
		t.Errorf("expected shortcode riverside-1, got %s", f.Shortcode)
	}
}

func TestAddProjectClearsDanglingParent(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.AddProject("Child", "", "project-404")
	if p.ParentID != "" {
		t.Errorf("expected dangling parent cleared, got %q", p.ParentID)
	}
}

func TestRegionIDsGloballyUnique(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.AddProject("A", "", "")
	f, _ := s.AddFloor(p.ID, "F1")

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		ref := OwnerRef{Kind: OwnerProject, ID: p.ID}
		if i%2 == 1 {
			ref = OwnerRef{Kind: OwnerFloor, ID: f.ID}
		}
		r, err := s.AddRegion(ref, "")
		if err != nil {
			t.Fatalf("AddRegion: %v", err)
		}
		if seen[r.ID] {
			t.Fatalf("duplicate region ID across owners: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestRegionIDsRespectPersistedIDs(t *testing.T) {
	data := &models.Dataset{
		Projects: []*models.Project{{
			ID:   "project-1",
			Name: "A",
			Regions: []*models.Region{
				{ID: "region-3"},
				{ID: "region-7"},
			},
		}},
	}
	alloc := idalloc.New()
	alloc.SeedNext(idalloc.KindRegion, 2)
	s := New(data, alloc)

	r, err := s.AddRegion(OwnerRef{Kind: OwnerProject, ID: "project-1"}, "")
	if err != nil {
		t.Fatalf("AddRegion: %v", err)
	}
	if r.ID != "region-8" {
		t.Errorf("expected region-8, got %s", r.ID)
	}
}

func TestReparentRejectsCycles(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddProject("A", "", "")
	b, _ := s.AddProject("B", "", a.ID)
	c, _ := s.AddProject("C", "", b.ID)

	if err := s.Reparent(a.ID, a.ID); err == nil {
		t.Error("expected self-parent rejection")
	}
	// Length-2+ cycle: A -> B -> C, then A under C.
	if err := s.Reparent(a.ID, c.ID); err == nil {
		t.Error("expected ancestor cycle rejection")
	}
	// A legal move still works.
	if err := s.Reparent(c.ID, a.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCascadingChildSelection(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.AddProject("M", "", "")
	m1, _ := s.AddProject("M1", "", m.ID)
	m2, _ := s.AddProject("M2", "", m.ID)
	l1, _ := s.AddFloor(m.ID, "L1")
	l2, _ := s.AddFloor(m1.ID, "L2")
	l3, _ := s.AddFloor(m2.ID, "L3")

	host, _ := s.AddProject("Host", "", "")
	ref := OwnerRef{Kind: OwnerProject, ID: host.ID}
	r, _ := s.AddRegion(ref, "zone")

	changed, err := s.ToggleChild(ref, r.ID, models.MapKey(m.ID), true)
	if err != nil {
		t.Fatalf("ToggleChild: %v", err)
	}
	if !changed {
		t.Error("expected change on first check")
	}

	region := findRegion(t, s, ref, r.ID)
	want := []models.ChildKey{
		models.MapKey(m.ID), models.MapKey(m1.ID), models.MapKey(m2.ID),
		models.LocationKey(l1.ID), models.LocationKey(l2.ID), models.LocationKey(l3.ID),
	}
	for _, k := range want {
		if !region.HasChild(k) {
			t.Errorf("expected %s linked after checking map", k)
		}
	}

	// Unchecking the map clears the whole subtree.
	if _, err := s.ToggleChild(ref, r.ID, models.MapKey(m.ID), false); err != nil {
		t.Fatalf("ToggleChild uncheck: %v", err)
	}
	region = findRegion(t, s, ref, r.ID)
	if len(region.Children) != 0 {
		t.Errorf("expected no children after unchecking, got %v", region.Children)
	}
}

func TestToggleLocationAffectsOnlyItself(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.AddProject("M", "", "")
	l1, _ := s.AddFloor(m.ID, "L1")
	s.AddFloor(m.ID, "L2")

	ref := OwnerRef{Kind: OwnerProject, ID: m.ID}
	r, _ := s.AddRegion(ref, "")

	if _, err := s.ToggleChild(ref, r.ID, models.LocationKey(l1.ID), true); err != nil {
		t.Fatalf("ToggleChild: %v", err)
	}
	region := findRegion(t, s, ref, r.ID)
	if len(region.Children) != 1 || region.Children[0] != models.LocationKey(l1.ID) {
		t.Errorf("expected single location child, got %v", region.Children)
	}
}

func TestDirectChildCountVsDescendantKeys(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.AddProject("M", "", "")
	m1, _ := s.AddProject("M1", "", m.ID)
	s.AddFloor(m.ID, "L1")
	s.AddFloor(m1.ID, "L2")

	// Badge counts one level down only: sub-project M1 + floor L1.
	if got := s.DirectChildCount(m.ID); got != 2 {
		t.Errorf("expected direct child count 2, got %d", got)
	}
	// The cascade set is transitive: map:M, map:M1, location:L1, location:L2.
	if got := len(s.DescendantKeys(m.ID)); got != 4 {
		t.Errorf("expected 4 descendant keys, got %d", got)
	}
}

func TestDescendantCacheInvalidatedOnReparent(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.AddProject("M", "", "")
	other, _ := s.AddProject("Other", "", "")
	sub, _ := s.AddProject("Sub", "", other.ID)

	before := len(s.DescendantKeys(m.ID))
	if err := s.Reparent(sub.ID, m.ID); err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	after := len(s.DescendantKeys(m.ID))
	if after != before+1 {
		t.Errorf("expected descendant set to grow from %d to %d, got %d", before, before+1, after)
	}
}

func TestDeleteProjectPrunesReferences(t *testing.T) {
	s := newTestStore(t)
	m, _ := s.AddProject("M", "", "")
	f, _ := s.AddFloor(m.ID, "L1")
	child, _ := s.AddProject("Child", "", m.ID)

	host, _ := s.AddProject("Host", "", "")
	ref := OwnerRef{Kind: OwnerProject, ID: host.ID}
	r, _ := s.AddRegion(ref, "")
	s.ToggleChild(ref, r.ID, models.MapKey(m.ID), true)
	s.SetImage(models.ImageKey("project", m.ID), &models.Image{ID: "att-1", URL: "/img/m.jpg"})
	s.SetImage(models.ImageKey("floor", f.ID), &models.Image{ID: "att-2", URL: "/img/f.jpg"})

	if err := s.DeleteProject(m.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	region := findRegion(t, s, ref, r.ID)
	if region.HasChild(models.MapKey(m.ID)) || region.HasChild(models.LocationKey(f.ID)) {
		t.Errorf("expected child refs pruned, got %v", region.Children)
	}
	if s.Image(models.ImageKey("project", m.ID)) != nil {
		t.Error("expected project image association removed")
	}
	if s.Image(models.ImageKey("floor", f.ID)) != nil {
		t.Error("expected floor image association removed")
	}
	got, _ := s.Project(child.ID)
	if got.ParentID != "" {
		t.Errorf("expected orphaned child re-rooted, got parent %q", got.ParentID)
	}
}

func TestFloorSortNumericAware(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.AddProject("P", "", "")
	s.AddFloor(p.ID, "3NP")
	s.AddFloor(p.ID, "2NP")
	s.AddFloor(p.ID, "10NP")

	s.SortHierarchy()
	got, _ := s.Project(p.ID)

	names := []string{got.Floors[0].Name, got.Floors[1].Name, got.Floors[2].Name}
	want := []string{"2NP", "3NP", "10NP"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected floor order %v, got %v", want, names)
		}
	}
}

func TestProjectTopologicalOrder(t *testing.T) {
	s := newTestStore(t)
	b, _ := s.AddProject("Beta", "", "")
	a, _ := s.AddProject("Alpha", "", "")
	sub, _ := s.AddProject("Sub of beta", "", b.ID)

	sorted := s.SortedProjects()
	order := []string{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	want := []string{a.ID, b.ID, sub.ID}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestShortcodeDeduplication(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddProject("Tower", "", "")
	b, _ := s.AddProject("Tower", "", "")
	c, _ := s.AddProject("Tower", "", "")

	if a.Shortcode != "tower" || b.Shortcode != "tower-1" || c.Shortcode != "tower-2" {
		t.Errorf("unexpected shortcodes: %s %s %s", a.Shortcode, b.Shortcode, c.Shortcode)
	}
}

func TestFloorOrdinalSkipsExplicitShortcodes(t *testing.T) {
	data := &models.Dataset{
		Projects: []*models.Project{{
			ID:        "project-1",
			Name:      "Tower",
			Shortcode: "tower",
			Floors: []*models.Floor{
				{ID: "floor-1", Name: "A", Shortcode: "tower-2"},
				{ID: "floor-2", Name: "B"},
				{ID: "floor-3", Name: "C"},
			},
		}},
	}
	s := New(data, idalloc.New())
	s.RefreshShortcodes()

	p, _ := s.Project("project-1")
	if p.Floors[0].Shortcode != "tower-2" {
		t.Errorf("explicit shortcode overwritten: %s", p.Floors[0].Shortcode)
	}
	if p.Floors[1].Shortcode != "tower-1" || p.Floors[2].Shortcode != "tower-3" {
		t.Errorf("expected ordinals 1 and 3, got %s and %s",
			p.Floors[1].Shortcode, p.Floors[2].Shortcode)
	}
}

func findRegion(t *testing.T, s *Store, ref OwnerRef, id string) *models.Region {
	t.Helper()
	regions, err := s.OwnerRegions(ref)
	if err != nil {
		t.Fatalf("OwnerRegions: %v", err)
	}
	for _, r := range regions {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("region %s not found", id)
	return nil
}
