package routes

import (
	"net/http"

	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

func GetNodesHandler(c echo.Context) error {
	projectID := util.ProjectID(c, "")
	if projectID == "" {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	nodes, err := app.Store.GetNodes(c.Request().Context(), projectID)
	if err != nil {
		logger.Error("[Graph] Failed to load nodes", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to load nodes")
	}
	if nodes == nil {
		nodes = []common.Node{}
	}

	return util.OK(c, "Nodes loaded", graph.NodeResultData{Nodes: nodes, Count: len(nodes), ProjectID: projectID})
}

// GetEdgesHandler returns the project's edges with their endpoints. Edges
// whose endpoints no longer exist are left out.
func GetEdgesHandler(c echo.Context) error {
	projectID := util.ProjectID(c, "")
	if projectID == "" {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	nodes, err := app.Store.GetNodes(ctx, projectID)
	if err != nil {
		logger.Error("[Graph] Failed to load nodes", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to load edges")
	}
	edges, err := app.Store.GetEdges(ctx, projectID)
	if err != nil {
		logger.Error("[Graph] Failed to load edges", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to load edges")
	}

	out := edgesData{Edges: common.WithNodes(edges, nodes), ProjectID: projectID}
	out.Count = len(out.Edges)
	if skipped := len(edges) - out.Count; skipped > 0 {
		logger.Debug("[Graph] Omitted edges with missing nodes", "project_id", projectID, "count", skipped)
	}
	return util.OK(c, "Edges loaded", out)
}

// GetMirrorGraphHandler reads the project subgraph straight from Neo4j.
func GetMirrorGraphHandler(c echo.Context) error {
	projectID := util.ProjectID(c, "")
	if projectID == "" {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}

	app := c.(*middleware.AppContext).App
	if app.GraphView == nil {
		return util.Fail(c, http.StatusServiceUnavailable, "Graph mirror is not configured")
	}

	g, err := app.GraphView.GetProjectGraph(c.Request().Context(), projectID)
	if err != nil {
		logger.Error("[Graph] Failed to read mirror graph", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to read graph mirror")
	}

	return util.OK(c, "Graph loaded", map[string]any{
		"nodes":      g.Nodes,
		"edges":      g.Edges,
		"project_id": projectID,
	})
}
