// handlers_store.go - Keyed store protocol handlers
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/drawmap/backend/internal/remote"
)

// MaxValueBytes bounds a single stored value.
const MaxValueBytes = 4 << 20

// StoreHandlerImpl implements the StoreHandler interface over a backing
// remote.Store (the local sqlite store in the combined deployment).
type StoreHandlerImpl struct {
	backend remote.Store
}

// NewStoreHandler creates a new store protocol handler
func NewStoreHandler(backend remote.Store) StoreHandler {
	return &StoreHandlerImpl{backend: backend}
}

// HandleListKeys returns every stored key with its value
func (h *StoreHandlerImpl) HandleListKeys(c echo.Context) error {
	all, err := h.backend.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, all)
}

// HandleGetKey returns the raw JSON value for one key
func (h *StoreHandlerImpl) HandleGetKey(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return NewValidationError("key")
	}

	value, err := h.backend.Get(c.Request().Context(), key)
	if err != nil {
		return err
	}
	if value == nil {
		return NewNotFoundError("key", key)
	}
	return c.JSONBlob(http.StatusOK, value)
}

// HandleSetKey stores the request body as the value for one key
func (h *StoreHandlerImpl) HandleSetKey(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return NewValidationError("key")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, MaxValueBytes+1))
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	if len(body) > MaxValueBytes {
		return NewBadRequestError("value too large", nil)
	}
	if !json.Valid(body) {
		return NewBadRequestError("value is not valid JSON", nil)
	}

	if err := h.backend.Set(c.Request().Context(), key, body); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRemoveKey deletes one key
func (h *StoreHandlerImpl) HandleRemoveKey(c echo.Context) error {
	key := c.Param("key")
	if key == "" {
		return NewValidationError("key")
	}
	if err := h.backend.Remove(c.Request().Context(), key); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleMigrate bulk-imports a key/value payload
func (h *StoreHandlerImpl) HandleMigrate(c echo.Context) error {
	var payload map[string]json.RawMessage
	if err := c.Bind(&payload); err != nil {
		return NewBadRequestError("invalid migrate payload", err)
	}
	if len(payload) == 0 {
		return NewBadRequestError("empty migrate payload", nil)
	}

	result, err := h.backend.Migrate(c.Request().Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleSaveImage associates a media attachment with an entity key
func (h *StoreHandlerImpl) HandleSaveImage(c echo.Context) error {
	var req remote.ImageRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid image payload", err)
	}
	if req.Key == "" {
		return NewValidationError("key")
	}
	if req.AttachmentID == "" {
		return NewValidationError("attachmentId")
	}

	img, err := h.backend.SaveImage(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"image": img,
	})
}

// HandleExportMsgpack returns the full dataset as a MessagePack blob
func (h *StoreHandlerImpl) HandleExportMsgpack(c echo.Context) error {
	all, err := h.backend.List(c.Request().Context())
	if err != nil {
		return err
	}

	// Decode each raw value so the export carries structured data instead
	// of double-encoded JSON strings.
	decoded := make(map[string]interface{}, len(all))
	for key, raw := range all {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return NewInternalError("corrupt value for key "+key, err)
		}
		decoded[key] = v
	}

	blob, err := msgpack.Marshal(decoded)
	if err != nil {
		return NewInternalError("msgpack encoding failed", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", blob)
}
