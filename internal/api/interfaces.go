// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// StoreHandler exposes the keyed persistence protocol
type StoreHandler interface {
	HandleListKeys(c echo.Context) error
	HandleGetKey(c echo.Context) error
	HandleSetKey(c echo.Context) error
	HandleRemoveKey(c echo.Context) error
	HandleMigrate(c echo.Context) error
	HandleSaveImage(c echo.Context) error
	HandleExportMsgpack(c echo.Context) error
}

// ModelHandler handles project hierarchy operations
type ModelHandler interface {
	HandleListProjects(c echo.Context) error
	HandleCreateProject(c echo.Context) error
	HandleDeleteProject(c echo.Context) error
	HandleReparentProject(c echo.Context) error
	HandleProjectChildren(c echo.Context) error
	HandleCreateFloor(c echo.Context) error
	HandleDeleteFloor(c echo.Context) error
	HandleToggleRegionChild(c echo.Context) error
	HandleDeleteRegion(c echo.Context) error
	HandleSetEntityImage(c echo.Context) error
	HandleImport(c echo.Context) error
}

// EditorHandler handles interactive geometry editing sessions
type EditorHandler interface {
	HandleOpenSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleCloseSession(c echo.Context) error
	HandleAddRegion(c echo.Context) error
	HandleSetActiveRegion(c echo.Context) error
	HandleInsertPoint(c echo.Context) error
	HandleDeletePoint(c echo.Context) error
	HandleSetClosed(c echo.Context) error
	HandleDrag(c echo.Context) error
	HandleSetTransform(c echo.Context) error
	HandleSetViewBox(c echo.Context) error
	HandleRevert(c echo.Context) error
	HandleSave(c echo.Context) error
}

// HealthHandler handles health check and queue control operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleSetOnline(c echo.Context) error
}
