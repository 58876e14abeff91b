package editor

import (
	"math"
	"testing"

	"github.com/drawmap/backend/internal/geometry"
	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/store"
)

type recordingPersister struct {
	calls []store.OwnerRef
	err   error
}

func (p *recordingPersister) SaveOwner(ref store.OwnerRef) error {
	p.calls = append(p.calls, ref)
	return p.err
}

func newTestEditor(t *testing.T) (*Editor, *store.Store, *models.Region, *recordingPersister) {
	t.Helper()
	st := store.New(&models.Dataset{}, idalloc.New())
	p, err := st.AddProject("Site", "", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	ref := store.OwnerRef{Kind: store.OwnerProject, ID: p.ID}
	r, err := st.AddRegion(ref, "zone")
	if err != nil {
		t.Fatalf("AddRegion: %v", err)
	}
	persist := &recordingPersister{}
	ed, err := Open(st, persist, ref, 1000, 500, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ed, st, r, persist
}

func TestOpenMissingOwnerFails(t *testing.T) {
	st := store.New(&models.Dataset{}, idalloc.New())
	_, err := Open(st, nil, store.OwnerRef{Kind: store.OwnerProject, ID: "project-404"}, 100, 100, nil)
	if err == nil {
		t.Fatal("expected error for missing owner")
	}
}

func TestInsertPointAutoCloses(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	if err := ed.SetActiveRegion(r.ID); err != nil {
		t.Fatalf("SetActiveRegion: %v", err)
	}

	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	if _, _, closed := ed.ActiveRegion(); closed {
		t.Error("2-point region must stay open")
	}

	ed.InsertPoint(geometry.Point{X: 150, Y: 200})
	if _, points, closed := ed.ActiveRegion(); !closed || len(points) != 3 {
		t.Errorf("expected auto-close at 3 points, got closed=%v points=%d", closed, len(points))
	}
}

func TestDeletePointReopens(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	ed.InsertPoint(geometry.Point{X: 150, Y: 200})

	if err := ed.DeletePoint(1); err != nil {
		t.Fatalf("DeletePoint: %v", err)
	}
	if _, points, closed := ed.ActiveRegion(); closed || len(points) != 2 {
		t.Errorf("expected open 2-point region, got closed=%v points=%d", closed, len(points))
	}
}

func TestInsertPointInverseProjectsAndClamps(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	// Screen space is 2x zoomed and panned by (50, 20).
	ed.SetTransform(geometry.Transform{Scale: 2, OffsetX: 50, OffsetY: 20})

	ed.InsertPoint(geometry.Point{X: 250, Y: 220}) // -> viewbox (100, 100)
	ed.InsertPoint(geometry.Point{X: 5000, Y: -300})

	_, points, _ := ed.ActiveRegion()
	if points[0] != (geometry.Point{X: 100, Y: 100}) {
		t.Errorf("expected inverse-projected (100,100), got %v", points[0])
	}
	// Out-of-box click clamps to the view box, not the screen.
	if points[1].X != 1000 || points[1].Y != 0 {
		t.Errorf("expected clamp to (1000,0), got %v", points[1])
	}
}

func TestDragGestureExclusivity(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	ed.InsertPoint(geometry.Point{X: 150, Y: 200})

	if err := ed.BeginVertexDrag(0); err != nil {
		t.Fatalf("BeginVertexDrag: %v", err)
	}
	if err := ed.BeginVertexDrag(1); err == nil {
		t.Error("expected second vertex drag to be rejected")
	}
	if err := ed.BeginPolygonDrag(); err == nil {
		t.Error("expected polygon drag rejected while vertex drag active")
	}

	ed.MoveVertex(geometry.Point{X: 120, Y: 110})
	ed.EndDrag()

	_, points, _ := ed.ActiveRegion()
	if points[0] != (geometry.Point{X: 120, Y: 110}) {
		t.Errorf("expected dragged vertex at (120,110), got %v", points[0])
	}

	// After the gesture ends a new one may start.
	if err := ed.BeginPolygonDrag(); err != nil {
		t.Errorf("BeginPolygonDrag after EndDrag: %v", err)
	}
}

func TestPolygonDragRequiresClosed(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})

	if err := ed.BeginPolygonDrag(); err == nil {
		t.Error("expected polygon drag rejected on open polyline")
	}
}

func TestPolygonDragClampsPerVertex(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 900, Y: 100})
	ed.InsertPoint(geometry.Point{X: 500, Y: 300})

	if err := ed.BeginPolygonDrag(); err != nil {
		t.Fatalf("BeginPolygonDrag: %v", err)
	}
	ed.MovePolygon(200, 0)
	ed.EndDrag()

	_, points, _ := ed.ActiveRegion()
	// The rightmost vertex hits the edge while the others move the full
	// delta, distorting the shape. Documented behavior.
	if points[0].X != 300 {
		t.Errorf("expected first vertex at x=300, got %v", points[0].X)
	}
	if points[1].X != 1000 {
		t.Errorf("expected second vertex clamped at x=1000, got %v", points[1].X)
	}
}

func TestViewBoxRescaleInvariance(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 123.4, Y: 56.7})
	ed.InsertPoint(geometry.Point{X: 800, Y: 400})
	ed.InsertPoint(geometry.Point{X: 10, Y: 490})
	_, before, _ := ed.ActiveRegion()

	if err := ed.SetViewBoxSize(1920, 1080, true); err != nil {
		t.Fatalf("SetViewBoxSize: %v", err)
	}
	if err := ed.SetViewBoxSize(1000, 500, true); err != nil {
		t.Fatalf("SetViewBoxSize back: %v", err)
	}

	_, after, _ := ed.ActiveRegion()
	for i := range before {
		if math.Abs(after[i].X-before[i].X) > 0.01 || math.Abs(after[i].Y-before[i].Y) > 0.01 {
			t.Errorf("point %d drifted: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestViewBoxReloadWithoutPreserve(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 500, Y: 250}) // normalized (0.5, 0.5)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 900, Y: 400})
	if err := ed.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := ed.SetViewBoxSize(200, 100, false); err != nil {
		t.Fatalf("SetViewBoxSize: %v", err)
	}
	_, points, _ := ed.ActiveRegion()
	if points[0] != (geometry.Point{X: 100, Y: 50}) {
		t.Errorf("expected model reload to (100,50), got %v", points[0])
	}
}

func TestSaveNormalizesIntoModel(t *testing.T) {
	ed, st, r, persist := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 250, Y: 125})
	ed.InsertPoint(geometry.Point{X: 1000, Y: 500})
	ed.InsertPoint(geometry.Point{X: 0, Y: 0})

	if err := ed.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(persist.calls) != 1 {
		t.Fatalf("expected one persist call, got %d", len(persist.calls))
	}

	saved, err := st.OwnerRegions(ed.Owner())
	if err != nil {
		t.Fatalf("OwnerRegions: %v", err)
	}
	got := saved[0]
	if !got.Closed {
		t.Error("expected saved region closed")
	}
	want := geometry.Point{X: 0.25, Y: 0.25}
	if got.Geometry.Points[0] != want {
		t.Errorf("expected normalized %v, got %v", want, got.Geometry.Points[0])
	}
}

func TestSaveFallsBackBelowMinimumPoints(t *testing.T) {
	ed, st, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	ed.InsertPoint(geometry.Point{X: 150, Y: 200})
	if err := ed.Save(); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	// Degrade the region below the minimum, then save again.
	ed.DeletePoint(2)
	ed.DeletePoint(1)
	if err := ed.Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	saved, _ := st.OwnerRegions(ed.Owner())
	if len(saved[0].Geometry.Points) != 3 {
		t.Errorf("expected fallback to last-saved 3-point geometry, got %d points",
			len(saved[0].Geometry.Points))
	}
	if !saved[0].Closed {
		t.Error("expected fallback geometry to stay closed")
	}
}

func TestRevertRestoresSnapshot(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	ed.InsertPoint(geometry.Point{X: 150, Y: 200})
	if err := ed.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutate everything after the save snapshot.
	ed.InsertPoint(geometry.Point{X: 500, Y: 400})
	ed.SetViewBoxSize(2000, 1000, true)
	second, _ := ed.AddRegion("scratch")
	ed.SetActiveRegion(second.ID)

	ed.Revert()

	w, h := ed.ViewBox()
	if w != 1000 || h != 500 {
		t.Errorf("expected view box restored to 1000x500, got %gx%g", w, h)
	}
	activeID, points, _ := ed.ActiveRegion()
	if activeID != r.ID {
		t.Errorf("expected active region restored to %s, got %s", r.ID, activeID)
	}
	if len(points) != 3 {
		t.Errorf("expected 3 points after revert, got %d", len(points))
	}
	if len(ed.Regions()) != 1 {
		t.Errorf("expected scratch region gone from working set, got %d regions", len(ed.Regions()))
	}
}

func TestSetActiveRegionCommitsPrevious(t *testing.T) {
	ed, _, r, _ := newTestEditor(t)
	second, err := ed.AddRegion("other")
	if err != nil {
		t.Fatalf("AddRegion: %v", err)
	}

	ed.SetActiveRegion(r.ID)
	ed.InsertPoint(geometry.Point{X: 100, Y: 100})
	ed.InsertPoint(geometry.Point{X: 200, Y: 100})
	ed.InsertPoint(geometry.Point{X: 150, Y: 200})

	// Switching away must commit the first region into the working set.
	if err := ed.SetActiveRegion(second.ID); err != nil {
		t.Fatalf("SetActiveRegion: %v", err)
	}
	for _, wr := range ed.Regions() {
		if wr.ID == r.ID {
			if len(wr.Geometry.Points) != 3 || !wr.Closed {
				t.Errorf("expected committed closed 3-point region, got %d points closed=%v",
					len(wr.Geometry.Points), wr.Closed)
			}
		}
	}
}
