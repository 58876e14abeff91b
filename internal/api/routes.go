// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/drawmap/backend/internal/editor"
	"github.com/drawmap/backend/internal/queue"
	"github.com/drawmap/backend/internal/remote"
	"github.com/drawmap/backend/internal/store"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Backend   remote.Store
	Store     *store.Store
	Queue     *queue.Queue
	EditorMgr *editor.Manager
	Hub       *EventHub
	Version   string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Store  StoreHandler
	Model  ModelHandler
	Editor EditorHandler
	Hub    *EventHub
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.Queue),
		Store:  NewStoreHandler(deps.Backend),
		Model:  NewModelHandler(deps.Store, deps.Queue),
		Editor: NewEditorHandler(deps.EditorMgr),
		Hub:    deps.Hub,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check and queue control
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.POST("/api/queue/online", handlers.Health.HandleSetOnline)

	// Keyed store protocol
	storeGroup := e.Group("/api/store")
	storeGroup.GET("", handlers.Store.HandleListKeys)
	storeGroup.GET("/export/msgpack", handlers.Store.HandleExportMsgpack)
	storeGroup.POST("/migrate", handlers.Store.HandleMigrate)
	storeGroup.POST("/image", handlers.Store.HandleSaveImage)
	storeGroup.GET("/:key", handlers.Store.HandleGetKey)
	storeGroup.PUT("/:key", handlers.Store.HandleSetKey)
	storeGroup.DELETE("/:key", handlers.Store.HandleRemoveKey)

	// Project hierarchy
	projectGroup := e.Group("/api/projects")
	projectGroup.GET("", handlers.Model.HandleListProjects)
	projectGroup.POST("", handlers.Model.HandleCreateProject)
	projectGroup.DELETE("/:id", handlers.Model.HandleDeleteProject)
	projectGroup.POST("/:id/parent", handlers.Model.HandleReparentProject)
	projectGroup.GET("/:id/children", handlers.Model.HandleProjectChildren)
	projectGroup.POST("/:id/floors", handlers.Model.HandleCreateFloor)

	e.DELETE("/api/floors/:id", handlers.Model.HandleDeleteFloor)
	e.POST("/api/regions/:id/children", handlers.Model.HandleToggleRegionChild)
	e.DELETE("/api/regions/:id", handlers.Model.HandleDeleteRegion)
	e.POST("/api/images", handlers.Model.HandleSetEntityImage)
	e.POST("/api/import", handlers.Model.HandleImport)

	// Editor sessions
	editorGroup := e.Group("/api/editor")
	editorGroup.POST("", handlers.Editor.HandleOpenSession)
	editorGroup.GET("/:sessionId", handlers.Editor.HandleGetSession)
	editorGroup.DELETE("/:sessionId", handlers.Editor.HandleCloseSession)
	editorGroup.POST("/:sessionId/regions", handlers.Editor.HandleAddRegion)
	editorGroup.POST("/:sessionId/active", handlers.Editor.HandleSetActiveRegion)
	editorGroup.POST("/:sessionId/points", handlers.Editor.HandleInsertPoint)
	editorGroup.DELETE("/:sessionId/points/:index", handlers.Editor.HandleDeletePoint)
	editorGroup.POST("/:sessionId/closed", handlers.Editor.HandleSetClosed)
	editorGroup.POST("/:sessionId/drag", handlers.Editor.HandleDrag)
	editorGroup.POST("/:sessionId/transform", handlers.Editor.HandleSetTransform)
	editorGroup.POST("/:sessionId/viewbox", handlers.Editor.HandleSetViewBox)
	editorGroup.POST("/:sessionId/revert", handlers.Editor.HandleRevert)
	editorGroup.POST("/:sessionId/save", handlers.Editor.HandleSave)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/events", handlers.Hub.HandleEvents)
}
