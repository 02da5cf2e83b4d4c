package routes

import (
	"net/http"

	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

func CheckExtractionStatusHandler(c echo.Context) error {
	type statusResponse struct {
		Success  bool `json:"success"`
		HasNodes bool `json:"has_nodes"`
		HasEdges bool `json:"has_edges"`
		Status   int  `json:"status"`
	}

	projectID, ok := bindProjectID(c)
	if !ok {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	status, err := app.Sync.HasData(c.Request().Context(), projectID)
	if err != nil {
		logger.Error("[Graph] Failed to check extraction status", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to check extraction status")
	}

	return c.JSON(http.StatusOK, statusResponse{
		Success:  true,
		HasNodes: status.HasNodes,
		HasEdges: status.HasEdges,
		Status:   http.StatusOK,
	})
}
