// handlers_editor.go - Interactive geometry editing session handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/drawmap/backend/internal/editor"
	"github.com/drawmap/backend/internal/geometry"
)

// EditorHandlerImpl implements the EditorHandler interface
type EditorHandlerImpl struct {
	manager *editor.Manager
}

// NewEditorHandler creates a new editor handler
func NewEditorHandler(m *editor.Manager) EditorHandler {
	return &EditorHandlerImpl{manager: m}
}

func (h *EditorHandlerImpl) session(c echo.Context) (*editor.Session, error) {
	id := c.Param("sessionId")
	sess, ok := h.manager.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return sess, nil
}

// sessionState is the editor state sent back after every operation, so a
// client can redraw without a follow-up fetch.
type sessionState struct {
	SessionID    string            `json:"sessionId"`
	Owner        string            `json:"owner"`
	Width        float64           `json:"width"`
	Height       float64           `json:"height"`
	ActiveRegion string            `json:"activeRegion,omitempty"`
	ActivePoints []geometry.Point  `json:"activePoints"`
	ActiveClosed bool              `json:"activeClosed"`
	Regions      interface{}       `json:"regions"`
}

func stateOf(sess *editor.Session) *sessionState {
	w, hgt := sess.Editor.ViewBox()
	id, points, closed := sess.Editor.ActiveRegion()
	if points == nil {
		points = []geometry.Point{}
	}
	return &sessionState{
		SessionID:    sess.ID,
		Owner:        sess.Editor.Owner().String(),
		Width:        w,
		Height:       hgt,
		ActiveRegion: id,
		ActivePoints: points,
		ActiveClosed: closed,
		Regions:      sess.Editor.Regions(),
	}
}

type openSessionRequest struct {
	OwnerKind string  `json:"ownerKind"`
	OwnerID   string  `json:"ownerId"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

// HandleOpenSession starts an editing session on a project or floor
func (h *EditorHandlerImpl) HandleOpenSession(c echo.Context) error {
	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid session payload", err)
	}
	if req.Width <= 0 || req.Height <= 0 {
		return NewValidationError("width/height")
	}

	ref, err := parseOwner(req.OwnerKind, req.OwnerID)
	if err != nil {
		return err
	}

	sess, err := h.manager.Open(ref, req.Width, req.Height)
	if errors.Is(err, editor.ErrTooManySessions) {
		return NewServiceUnavailableError("editor session limit reached, retry later")
	}
	if err != nil {
		return NewNotFoundError("owner", ref.String())
	}
	return c.JSON(http.StatusCreated, stateOf(sess))
}

// HandleGetSession returns the current session state
func (h *EditorHandlerImpl) HandleGetSession(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

// HandleCloseSession discards a session without saving
func (h *EditorHandlerImpl) HandleCloseSession(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.manager.Close(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

type addRegionRequest struct {
	Label string `json:"label"`
}

// HandleAddRegion creates a region in the session's working set
func (h *EditorHandlerImpl) HandleAddRegion(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req addRegionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid region payload", err)
	}

	r, err := sess.Editor.AddRegion(req.Label)
	if err != nil {
		return NewBadRequestError("failed to add region", err)
	}
	return c.JSON(http.StatusCreated, r)
}

type setActiveRequest struct {
	RegionID string `json:"regionId"`
}

// HandleSetActiveRegion selects the region receiving point edits
func (h *EditorHandlerImpl) HandleSetActiveRegion(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req setActiveRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid payload", err)
	}

	if err := sess.Editor.SetActiveRegion(req.RegionID); err != nil {
		return NewNotFoundError("region", req.RegionID)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

type pointRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HandleInsertPoint appends a vertex at the given screen position
func (h *EditorHandlerImpl) HandleInsertPoint(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req pointRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid point payload", err)
	}

	if err := sess.Editor.InsertPoint(geometry.Point{X: req.X, Y: req.Y}); err != nil {
		return NewBadRequestError("insert failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

// HandleDeletePoint removes a vertex by index
func (h *EditorHandlerImpl) HandleDeletePoint(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	index, err := parseIndex(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}
	if err := sess.Editor.DeletePoint(index); err != nil {
		return NewBadRequestError("delete failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

type setClosedRequest struct {
	Closed bool `json:"closed"`
}

// HandleSetClosed opens or closes the active polygon
func (h *EditorHandlerImpl) HandleSetClosed(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req setClosedRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid payload", err)
	}

	if err := sess.Editor.SetClosed(req.Closed); err != nil {
		return NewBadRequestError("close toggle failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

type dragRequest struct {
	Phase string  `json:"phase"` // begin, move, end
	Kind  string  `json:"kind"`  // vertex, polygon
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
}

// HandleDrag drives a vertex or whole-polygon drag gesture. Geometry is
// not committed until the session saves.
func (h *EditorHandlerImpl) HandleDrag(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req dragRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid drag payload", err)
	}

	ed := sess.Editor
	switch req.Phase {
	case "begin":
		switch req.Kind {
		case "vertex":
			err = ed.BeginVertexDrag(req.Index)
		case "polygon":
			err = ed.BeginPolygonDrag()
		default:
			return NewValidationError("kind")
		}
	case "move":
		switch req.Kind {
		case "vertex":
			err = ed.MoveVertex(geometry.Point{X: req.X, Y: req.Y})
		case "polygon":
			err = ed.MovePolygon(req.DX, req.DY)
		default:
			return NewValidationError("kind")
		}
	case "end":
		ed.EndDrag()
	default:
		return NewValidationError("phase")
	}
	if err != nil {
		return NewBadRequestError("drag failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

type transformRequest struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// HandleSetTransform updates the screen-to-canvas projection
func (h *EditorHandlerImpl) HandleSetTransform(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req transformRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid transform payload", err)
	}
	if req.Scale <= 0 {
		return NewValidationError("scale")
	}

	sess.Editor.SetTransform(geometry.Transform{
		Scale:   req.Scale,
		OffsetX: req.OffsetX,
		OffsetY: req.OffsetY,
	})
	return c.NoContent(http.StatusNoContent)
}

type viewBoxRequest struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	PreservePoints bool    `json:"preservePoints"`
}

// HandleSetViewBox resizes the editing canvas
func (h *EditorHandlerImpl) HandleSetViewBox(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	var req viewBoxRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid viewbox payload", err)
	}
	if req.Width <= 0 || req.Height <= 0 {
		return NewValidationError("width/height")
	}

	if err := sess.Editor.SetViewBoxSize(req.Width, req.Height, req.PreservePoints); err != nil {
		return NewBadRequestError("viewbox change failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

// HandleRevert discards all edits made since the session opened or last
// saved
func (h *EditorHandlerImpl) HandleRevert(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	sess.Editor.Revert()
	return c.JSON(http.StatusOK, stateOf(sess))
}

// HandleSave commits the working geometry back to the model and persists
func (h *EditorHandlerImpl) HandleSave(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if err := sess.Editor.Save(); err != nil {
		return NewInternalError("save failed", err)
	}
	return c.JSON(http.StatusOK, stateOf(sess))
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
