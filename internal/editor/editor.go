// Package editor implements the interactive region-geometry editor: a
// per-owner editing session that manipulates one active region at a time in
// pixel space and commits normalized geometry back into the model.
package editor

import (
	"fmt"
	"sync"

	"github.com/drawmap/backend/internal/geometry"
	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/store"
)

// Persister receives the owner after a successful save. The persistence
// queue implements this; tests substitute their own.
type Persister interface {
	SaveOwner(ref store.OwnerRef) error
}

type dragKind int

const (
	dragNone dragKind = iota
	dragVertex
	dragPolygon
)

type snapshot struct {
	regions  []*models.Region
	activeID string
	viewW    float64
	viewH    float64
}

// Editor edits the region set of one owner. All point coordinates it works
// with are in view-box pixel space; the model only ever sees normalized
// geometry.
type Editor struct {
	mu      sync.Mutex
	store   *store.Store
	persist Persister
	owner   store.OwnerRef

	regions  []*models.Region // working copy of the owner's region set
	activeID string
	points   []geometry.Point // active region's vertices, pixel space
	closed   bool

	viewW     float64
	viewH     float64
	transform geometry.Transform

	drag      dragKind
	dragIndex int

	snap   snapshot
	redraw *Redraw
}

// Open starts an editing session for the owner. A missing owner is an error;
// the original quietly aborted here, which hid real bugs.
func Open(st *store.Store, persist Persister, ref store.OwnerRef, width, height float64, redraw *Redraw) (*Editor, error) {
	regions, err := st.OwnerRegions(ref)
	if err != nil {
		return nil, fmt.Errorf("opening editor: %w", err)
	}
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	e := &Editor{
		store:     st,
		persist:   persist,
		owner:     ref,
		regions:   regions,
		viewW:     width,
		viewH:     height,
		transform: geometry.Identity(),
		redraw:    redraw,
	}
	e.takeSnapshot()
	return e, nil
}

// Owner returns the owner reference this session edits.
func (e *Editor) Owner() store.OwnerRef { return e.owner }

// SetTransform installs the current view-box-to-screen projection used to
// interpret pointer coordinates.
func (e *Editor) SetTransform(t geometry.Transform) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transform = t
}

// ViewBox returns the current view-box dimensions.
func (e *Editor) ViewBox() (w, h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewW, e.viewH
}

// ActiveRegion returns the active region ID, its working points and closed
// state.
func (e *Editor) ActiveRegion() (id string, points []geometry.Point, closed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID, append([]geometry.Point(nil), e.points...), e.closed
}

// Regions returns the working region set.
func (e *Editor) Regions() []*models.Region {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.CloneRegions(e.regions)
}

// SetActiveRegion commits the previously active region's in-progress points
// back into the working set, then loads the target region into pixel space.
func (e *Editor) SetActiveRegion(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.commitActiveLocked()

	r := e.findRegionLocked(id)
	if r == nil {
		return fmt.Errorf("region not found: %s", id)
	}
	e.activeID = id
	e.points = geometry.Denormalize(r.Geometry.Points, e.viewW, e.viewH)
	e.closed = r.Closed
	e.drag = dragNone
	e.invalidateLocked()
	return nil
}

// InsertPoint appends a vertex at the clicked screen location. The click is
// inverse-projected into view-box space and clamped to the box. Reaching
// exactly three points closes the polygon automatically.
func (e *Editor) InsertPoint(screen geometry.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeID == "" {
		return fmt.Errorf("no active region")
	}
	p := geometry.Clamp(e.transform.Invert(screen), e.viewW, e.viewH).Round()
	if !p.Finite() {
		return nil
	}
	e.points = append(e.points, p)
	if len(e.points) == models.MinPolygonPoints {
		e.closed = true
	}
	e.invalidateLocked()
	return nil
}

// DeletePoint removes a vertex and re-evaluates the closed flag.
func (e *Editor) DeletePoint(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeID == "" {
		return fmt.Errorf("no active region")
	}
	if index < 0 || index >= len(e.points) {
		return fmt.Errorf("point index out of range: %d", index)
	}
	e.points = append(e.points[:index], e.points[index+1:]...)
	if len(e.points) < models.MinPolygonPoints {
		e.closed = false
	}
	e.invalidateLocked()
	return nil
}

// SetClosed toggles the closed flag. Closing requires at least three points.
func (e *Editor) SetClosed(closed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeID == "" {
		return fmt.Errorf("no active region")
	}
	if closed && len(e.points) < models.MinPolygonPoints {
		return fmt.Errorf("cannot close a region with %d points", len(e.points))
	}
	e.closed = closed
	e.invalidateLocked()
	return nil
}

// BeginVertexDrag starts a drag gesture on one vertex. Only one gesture may
// be active at a time.
func (e *Editor) BeginVertexDrag(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeID == "" {
		return fmt.Errorf("no active region")
	}
	if e.drag != dragNone {
		return fmt.Errorf("drag gesture already in progress")
	}
	if index < 0 || index >= len(e.points) {
		return fmt.Errorf("point index out of range: %d", index)
	}
	e.drag = dragVertex
	e.dragIndex = index
	return nil
}

// MoveVertex repositions the dragged vertex. The move only touches the
// working points; nothing is committed until the gesture ends.
func (e *Editor) MoveVertex(screen geometry.Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.drag != dragVertex {
		return fmt.Errorf("no vertex drag in progress")
	}
	p := geometry.Clamp(e.transform.Invert(screen), e.viewW, e.viewH).Round()
	if p.Finite() {
		e.points[e.dragIndex] = p
	}
	e.invalidateLocked()
	return nil
}

// BeginPolygonDrag starts a whole-polygon drag. Only closed polygons can be
// dragged.
func (e *Editor) BeginPolygonDrag() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeID == "" {
		return fmt.Errorf("no active region")
	}
	if !e.closed {
		return fmt.Errorf("only closed polygons can be dragged")
	}
	if e.drag != dragNone {
		return fmt.Errorf("drag gesture already in progress")
	}
	e.drag = dragPolygon
	return nil
}

// MovePolygon translates every vertex by the same delta. Each vertex clamps
// to the view box independently, so dragging against an edge can distort the
// shape; that is the documented behavior, not a defect.
func (e *Editor) MovePolygon(dx, dy float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.drag != dragPolygon {
		return fmt.Errorf("no polygon drag in progress")
	}
	e.points = geometry.Translate(e.points, dx, dy, e.viewW, e.viewH)
	e.invalidateLocked()
	return nil
}

// EndDrag finishes the current gesture, whichever kind it is.
func (e *Editor) EndDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag = dragNone
	e.invalidateLocked()
}

// SetViewBoxSize rescales the declared coordinate space, typically when the
// background image's natural size becomes known. With preservePoints the
// working points are remapped proportionally; otherwise they are reloaded
// from the model geometry.
func (e *Editor) SetViewBoxSize(width, height float64, preservePoints bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("view box must be positive, got %gx%g", width, height)
	}
	oldW, oldH := e.viewW, e.viewH
	e.viewW, e.viewH = width, height

	if e.activeID != "" {
		if preservePoints {
			e.points = geometry.Rescale(e.points, oldW, oldH, width, height)
		} else if r := e.findRegionLocked(e.activeID); r != nil {
			e.points = geometry.Denormalize(r.Geometry.Points, width, height)
		}
	}
	e.invalidateLocked()
	return nil
}

// Revert restores the owner's entire region set, the active-region selector
// and the view-box dimensions to the last snapshot. Single-level, whole-owner
// undo.
func (e *Editor) Revert() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.regions = models.CloneRegions(e.snap.regions)
	e.activeID = e.snap.activeID
	e.viewW, e.viewH = e.snap.viewW, e.snap.viewH
	e.drag = dragNone
	e.points = nil
	e.closed = false
	if r := e.findRegionLocked(e.activeID); r != nil {
		e.points = geometry.Denormalize(r.Geometry.Points, e.viewW, e.viewH)
		e.closed = r.Closed
	}
	e.invalidateLocked()
}

// Save commits the active region, validates every region's point count and
// replaces the owner's region set in the model wholesale, then hands the
// owner to the persister. A region that ended up with fewer than three
// points falls back to its last-saved geometry instead of being emptied.
func (e *Editor) Save() error {
	e.mu.Lock()

	e.commitActiveLocked()

	for _, r := range e.regions {
		if len(r.Geometry.Points) >= models.MinPolygonPoints {
			continue
		}
		if prev := findRegion(e.snap.regions, r.ID); prev != nil && len(prev.Geometry.Points) >= models.MinPolygonPoints {
			r.Geometry.Points = append([]geometry.Point(nil), prev.Geometry.Points...)
			r.Closed = prev.Closed
			if e.activeID == r.ID {
				e.points = geometry.Denormalize(r.Geometry.Points, e.viewW, e.viewH)
				e.closed = r.Closed
			}
		}
	}

	owner := e.owner
	regions := models.CloneRegions(e.regions)
	e.mu.Unlock()

	if err := e.store.ReplaceOwnerRegions(owner, regions); err != nil {
		return fmt.Errorf("saving regions: %w", err)
	}
	if e.persist != nil {
		if err := e.persist.SaveOwner(owner); err != nil {
			return fmt.Errorf("persisting owner: %w", err)
		}
	}

	e.mu.Lock()
	e.takeSnapshot()
	e.mu.Unlock()
	return nil
}

// AddRegion creates a fresh region in the model and mirrors it into the
// working set.
func (e *Editor) AddRegion(label string) (*models.Region, error) {
	r, err := e.store.AddRegion(e.owner, label)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.regions = append(e.regions, models.CloneRegion(r))
	e.invalidateLocked()
	e.mu.Unlock()
	return r, nil
}

func (e *Editor) commitActiveLocked() {
	r := e.findRegionLocked(e.activeID)
	if r == nil {
		return
	}
	r.Geometry.Points = geometry.Normalize(e.points, e.viewW, e.viewH)
	r.Closed = e.closed && len(r.Geometry.Points) >= models.MinPolygonPoints
}

func (e *Editor) findRegionLocked(id string) *models.Region {
	return findRegion(e.regions, id)
}

func findRegion(regions []*models.Region, id string) *models.Region {
	if id == "" {
		return nil
	}
	for _, r := range regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (e *Editor) takeSnapshot() {
	e.snap = snapshot{
		regions:  models.CloneRegions(e.regions),
		activeID: e.activeID,
		viewW:    e.viewW,
		viewH:    e.viewH,
	}
}

func (e *Editor) invalidateLocked() {
	if e.redraw != nil {
		e.redraw.Invalidate()
	}
}
