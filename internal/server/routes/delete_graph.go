package routes

import (
	"fmt"
	"net/http"

	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

type projectBody struct {
	ProjectID common.ID `json:"project_id"`
}

type deleteData struct {
	DeletedCount int64  `json:"deleted_count"`
	ProjectID    string `json:"project_id"`
	MirrorError  string `json:"mirror_error,omitempty"`
}

// bindProjectID reads project_id from a JSON body or the query string.
func bindProjectID(c echo.Context) (string, bool) {
	data := new(projectBody)
	if err := c.Bind(data); err != nil {
		return "", false
	}
	id := util.ProjectID(c, data.ProjectID)
	return id, id != ""
}

func DeleteNodesHandler(c echo.Context) error {
	projectID, ok := bindProjectID(c)
	if !ok {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	deleted, err := app.Sync.DeleteNodes(c.Request().Context(), projectID)
	if err != nil {
		logger.Error("[Graph] Failed to delete nodes", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to delete nodes")
	}

	logger.Info("[Graph] Deleted nodes", "project_id", projectID, "count", deleted)
	return util.OK(c, fmt.Sprintf("Deleted %d nodes", deleted), deleteData{DeletedCount: deleted, ProjectID: projectID})
}

// DeleteEdgesHandler deletes the relational edges and the mirrored
// subgraph of a project.
func DeleteEdgesHandler(c echo.Context) error {
	projectID, ok := bindProjectID(c)
	if !ok {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	deleted, err := app.Sync.DeleteEdges(c.Request().Context(), projectID)
	if err != nil && !graph.IsMirrorError(err) {
		logger.Error("[Graph] Failed to delete edges", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to delete edges")
	}

	out := deleteData{DeletedCount: deleted, ProjectID: projectID}
	if err != nil {
		out.MirrorError = err.Error()
		return util.Respond(c, http.StatusMultiStatus, fmt.Sprintf("Deleted %d edges, graph mirror cleanup failed", deleted), out)
	}

	logger.Info("[Graph] Deleted edges", "project_id", projectID, "count", deleted)
	return util.OK(c, fmt.Sprintf("Deleted %d edges", deleted), out)
}
