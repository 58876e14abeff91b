// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/drawmap/backend/internal/queue"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	queue   *queue.Queue
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, q *queue.Queue) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		queue:   q,
	}
}

// HandleHealth returns server health status plus the persistence queue state
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.queue != nil {
		resp["queue"] = h.queue.Stats()
	}
	return c.JSON(http.StatusOK, resp)
}

type onlineRequest struct {
	Online bool `json:"online"`
}

// HandleSetOnline mirrors the client's connectivity signal into the
// persistence queue. Going online wakes the drain loop; going offline
// holds deliveries until the signal flips back.
func (h *HealthHandlerImpl) HandleSetOnline(c echo.Context) error {
	var req onlineRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid online payload", err)
	}
	h.queue.SetOnline(req.Online)
	return c.JSON(http.StatusOK, h.queue.Stats())
}
