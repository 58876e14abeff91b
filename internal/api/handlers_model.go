// handlers_model.go - Project hierarchy handlers
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/queue"
	"github.com/drawmap/backend/internal/remote"
	"github.com/drawmap/backend/internal/store"
)

// ModelHandlerImpl implements the ModelHandler interface
type ModelHandlerImpl struct {
	store *store.Store
	queue *queue.Queue
}

// NewModelHandler creates a new model handler
func NewModelHandler(s *store.Store, q *queue.Queue) ModelHandler {
	return &ModelHandlerImpl{store: s, queue: q}
}

// persistProjects enqueues the full project list after a mutation.
func (h *ModelHandlerImpl) persistProjects() {
	raw, err := json.Marshal(h.store.SortedProjects())
	if err != nil {
		fmt.Printf("[Model] serialize projects: %v\n", err)
		return
	}
	h.queue.Set(models.KeyProjects, raw)
}

func parseOwner(kind, id string) (store.OwnerRef, error) {
	switch kind {
	case string(store.OwnerProject), string(store.OwnerFloor):
		return store.OwnerRef{Kind: store.OwnerKind(kind), ID: id}, nil
	}
	return store.OwnerRef{}, NewValidationError("ownerKind")
}

// HandleListProjects returns the sorted project tree
func (h *ModelHandlerImpl) HandleListProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"projects": h.store.SortedProjects(),
	})
}

type createProjectRequest struct {
	Name     string `json:"name"`
	TypeID   string `json:"type"`
	ParentID string `json:"parentId"`
}

// HandleCreateProject creates a project
func (h *ModelHandlerImpl) HandleCreateProject(c echo.Context) error {
	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid project payload", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	p, err := h.store.AddProject(req.Name, req.TypeID, req.ParentID)
	if err != nil {
		return NewInternalError("failed to create project", err)
	}
	h.persistProjects()
	return c.JSON(http.StatusCreated, p)
}

// HandleDeleteProject deletes a project, re-rooting its children
func (h *ModelHandlerImpl) HandleDeleteProject(c echo.Context) error {
	id := c.Param("id")

	// Floor image keys must be collected before the delete tears the
	// project down, or the backend rows for them are never cleaned.
	var floorIDs []string
	if p, err := h.store.Project(id); err == nil {
		for _, f := range p.Floors {
			floorIDs = append(floorIDs, f.ID)
		}
	}

	if err := h.store.DeleteProject(id); err != nil {
		return NewNotFoundError("project", id)
	}
	h.queue.Remove(models.ImageKey("project", id))
	for _, fid := range floorIDs {
		h.queue.Remove(models.ImageKey("floor", fid))
	}
	h.persistProjects()
	return c.NoContent(http.StatusNoContent)
}

type reparentRequest struct {
	ParentID string `json:"parentId"`
}

// HandleReparentProject moves a project under a new parent
func (h *ModelHandlerImpl) HandleReparentProject(c echo.Context) error {
	id := c.Param("id")
	var req reparentRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid parent payload", err)
	}

	if err := h.store.Reparent(id, req.ParentID); err != nil {
		return NewConflictError(err.Error())
	}
	h.persistProjects()
	return c.JSON(http.StatusOK, map[string]string{
		"id":       id,
		"parentId": req.ParentID,
	})
}

// HandleProjectChildren reports the direct child count and the transitive
// descendant keys used by cascading map links
func (h *ModelHandlerImpl) HandleProjectChildren(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.store.Project(id); err != nil {
		return NewNotFoundError("project", id)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"direct":      h.store.DirectChildCount(id),
		"descendants": h.store.DescendantKeys(id),
	})
}

type createFloorRequest struct {
	Name string `json:"name"`
}

// HandleCreateFloor creates a floor under a project
func (h *ModelHandlerImpl) HandleCreateFloor(c echo.Context) error {
	projectID := c.Param("id")
	var req createFloorRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid floor payload", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	f, err := h.store.AddFloor(projectID, req.Name)
	if err != nil {
		return NewNotFoundError("project", projectID)
	}
	h.persistProjects()
	return c.JSON(http.StatusCreated, f)
}

// HandleDeleteFloor deletes a floor
func (h *ModelHandlerImpl) HandleDeleteFloor(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.DeleteFloor(id); err != nil {
		return NewNotFoundError("floor", id)
	}
	h.queue.Remove(models.ImageKey("floor", id))
	h.persistProjects()
	return c.NoContent(http.StatusNoContent)
}

type toggleChildRequest struct {
	OwnerKind string `json:"ownerKind"`
	OwnerID   string `json:"ownerId"`
	Key       string `json:"key"`
	Checked   bool   `json:"checked"`
}

// HandleToggleRegionChild links or unlinks a child entity from a region.
// Map keys cascade over the target's whole subtree.
func (h *ModelHandlerImpl) HandleToggleRegionChild(c echo.Context) error {
	regionID := c.Param("id")
	var req toggleChildRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid link payload", err)
	}

	ref, err := parseOwner(req.OwnerKind, req.OwnerID)
	if err != nil {
		return err
	}

	changed, err := h.store.ToggleChild(ref, regionID, models.ChildKey(req.Key), req.Checked)
	if err != nil {
		return NewBadRequestError("link toggle failed", err)
	}
	if changed {
		h.persistProjects()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"changed": changed,
	})
}

// HandleDeleteRegion removes a region from its owner outside of an editor
// session. The owner is addressed by query parameters.
func (h *ModelHandlerImpl) HandleDeleteRegion(c echo.Context) error {
	regionID := c.Param("id")
	ref, err := parseOwner(c.QueryParam("ownerKind"), c.QueryParam("ownerId"))
	if err != nil {
		return err
	}
	if err := h.store.DeleteRegion(ref, regionID); err != nil {
		return NewNotFoundError("region", regionID)
	}
	h.persistProjects()
	return c.NoContent(http.StatusNoContent)
}

type setImageRequest struct {
	OwnerKind    string `json:"ownerKind"`
	OwnerID      string `json:"ownerId"`
	AttachmentID string `json:"attachmentId"`
	URL          string `json:"url"`
	Alt          string `json:"alt"`
}

// HandleSetEntityImage attaches an image to an entity. The local model gets
// an optimistic placeholder immediately; the durable association goes
// through the persistence queue, and the resolved descriptor replaces the
// placeholder when the save lands.
func (h *ModelHandlerImpl) HandleSetEntityImage(c echo.Context) error {
	var req setImageRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid image payload", err)
	}
	if _, err := parseOwner(req.OwnerKind, req.OwnerID); err != nil {
		return err
	}
	if req.AttachmentID == "" {
		return NewValidationError("attachmentId")
	}

	key := models.ImageKey(req.OwnerKind, req.OwnerID)
	placeholder := &models.Image{ID: req.AttachmentID, URL: req.URL, Alt: req.Alt}
	h.store.SetImage(key, placeholder)

	h.queue.SaveImage(remote.ImageRequest{
		Key:          key,
		EntityID:     req.OwnerID,
		AttachmentID: req.AttachmentID,
	}, func(resolved *models.Image) {
		h.store.ApplyImageResult(key, resolved)
	})

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"image": placeholder,
	})
}

// HandleImport bulk-imports a dataset payload through the queue. Offline,
// the payload is held for replay and a queued marker is returned.
func (h *ModelHandlerImpl) HandleImport(c echo.Context) error {
	var payload map[string]json.RawMessage
	if err := c.Bind(&payload); err != nil {
		return NewBadRequestError("invalid import payload", err)
	}
	if len(payload) == 0 {
		return NewValidationError("payload")
	}

	res, err := h.queue.Migrate(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
