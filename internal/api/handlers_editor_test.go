// handlers_editor_test.go - Tests for editor session handlers
package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/drawmap/backend/internal/editor"
	"github.com/drawmap/backend/internal/idalloc"
	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/store"
)

type recordingPersister struct {
	saved []store.OwnerRef
}

func (p *recordingPersister) SaveOwner(ref store.OwnerRef) error {
	p.saved = append(p.saved, ref)
	return nil
}

type editorFixture struct {
	store     *store.Store
	persister *recordingPersister
	handler   EditorHandler
	projectID string
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	s := store.New(&models.Dataset{}, idalloc.New())
	p, err := s.AddProject("Tower", "", "")
	if err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	persister := &recordingPersister{}
	mgr := editor.NewManager(s, persister, 0, nil)
	return &editorFixture{
		store:     s,
		persister: persister,
		handler:   NewEditorHandler(mgr),
		projectID: p.ID,
	}
}

func (f *editorFixture) openSession(t *testing.T) *sessionState {
	t.Helper()
	body := `{"ownerKind":"project","ownerId":"` + f.projectID + `","width":1000,"height":500}`
	c, rec := newStoreContext(http.MethodPost, "/api/editor", body)
	if err := f.handler.HandleOpenSession(c); err != nil {
		t.Fatalf("HandleOpenSession: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d", rec.Code)
	}
	var state sessionState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return &state
}

func TestEditorHandler_OpenUnknownOwner(t *testing.T) {
	f := newEditorFixture(t)

	body := `{"ownerKind":"project","ownerId":"project-99","width":1000,"height":500}`
	c, _ := newStoreContext(http.MethodPost, "/api/editor", body)
	err := f.handler.HandleOpenSession(c)

	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditorHandler_OpenAtCapacityReturnsServiceUnavailable(t *testing.T) {
	f := newEditorFixture(t)

	body := `{"ownerKind":"project","ownerId":"` + f.projectID + `","width":1000,"height":500}`
	for i := 0; i < editor.MaxSessions; i++ {
		c, rec := newStoreContext(http.MethodPost, "/api/editor", body)
		if err := f.handler.HandleOpenSession(c); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if rec.Code != http.StatusCreated {
			t.Fatalf("open %d status = %d", i, rec.Code)
		}
	}

	c, _ := newStoreContext(http.MethodPost, "/api/editor", body)
	err := f.handler.HandleOpenSession(c)

	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected service unavailable at capacity, got %v", err)
	}
}

func TestEditorHandler_DrawAndSave(t *testing.T) {
	f := newEditorFixture(t)
	state := f.openSession(t)

	// Create a region to draw into.
	c, rec := newStoreContext(http.MethodPost, "/api/editor/"+state.SessionID+"/regions", `{"label":"Zone A"}`)
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)
	if err := f.handler.HandleAddRegion(c); err != nil {
		t.Fatalf("HandleAddRegion: %v", err)
	}
	var region models.Region
	if err := json.Unmarshal(rec.Body.Bytes(), &region); err != nil {
		t.Fatalf("decode region: %v", err)
	}

	c, _ = newStoreContext(http.MethodPost, "/api/editor/"+state.SessionID+"/active", `{"regionId":"`+region.ID+`"}`)
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)
	if err := f.handler.HandleSetActiveRegion(c); err != nil {
		t.Fatalf("HandleSetActiveRegion: %v", err)
	}

	// Third point auto-closes the polygon.
	points := []string{`{"x":0,"y":0}`, `{"x":500,"y":0}`, `{"x":500,"y":500}`}
	var last sessionState
	for _, p := range points {
		c, rec = newStoreContext(http.MethodPost, "/api/editor/"+state.SessionID+"/points", p)
		c.SetParamNames("sessionId")
		c.SetParamValues(state.SessionID)
		if err := f.handler.HandleInsertPoint(c); err != nil {
			t.Fatalf("HandleInsertPoint: %v", err)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
			t.Fatalf("decode state: %v", err)
		}
	}
	if !last.ActiveClosed {
		t.Error("polygon should auto-close at three points")
	}

	c, _ = newStoreContext(http.MethodPost, "/api/editor/"+state.SessionID+"/save", "")
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)
	if err := f.handler.HandleSave(c); err != nil {
		t.Fatalf("HandleSave: %v", err)
	}

	if len(f.persister.saved) != 1 {
		t.Fatalf("persister called %d times", len(f.persister.saved))
	}

	regions, err := f.store.OwnerRegions(store.OwnerRef{Kind: store.OwnerProject, ID: f.projectID})
	if err != nil {
		t.Fatalf("OwnerRegions: %v", err)
	}
	if len(regions) != 1 || len(regions[0].Geometry.Points) != 3 {
		t.Fatalf("saved regions = %+v", regions)
	}
	// Geometry is stored normalized to the unit square.
	if regions[0].Geometry.Points[1].X != 0.5 {
		t.Errorf("normalized x = %v, want 0.5", regions[0].Geometry.Points[1].X)
	}
}

func TestEditorHandler_CloseSession(t *testing.T) {
	f := newEditorFixture(t)
	state := f.openSession(t)

	c, rec := newStoreContext(http.MethodDelete, "/api/editor/"+state.SessionID, "")
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)
	if err := f.handler.HandleCloseSession(c); err != nil {
		t.Fatalf("HandleCloseSession: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	c, _ = newStoreContext(http.MethodGet, "/api/editor/"+state.SessionID, "")
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)
	err := f.handler.HandleGetSession(c)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected not found after close, got %v", err)
	}
}

func TestEditorHandler_BadDragPhase(t *testing.T) {
	f := newEditorFixture(t)
	state := f.openSession(t)

	c, _ := newStoreContext(http.MethodPost, "/api/editor/"+state.SessionID+"/drag", `{"phase":"wiggle","kind":"vertex"}`)
	c.SetParamNames("sessionId")
	c.SetParamValues(state.SessionID)

	err := f.handler.HandleDrag(c)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected validation error, got %v", err)
	}
}
