package server

import (
	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

// router is implemented by both *echo.Echo and *echo.Group.
type router interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	// Graph routes at the root. Auth is attached per route so unknown paths
	// still answer 404.
	registerGraphRoutes(e, middleware.AuthMiddleware)

	// Same routes under /api
	registerGraphRoutes(e.Group("/api", middleware.AuthMiddleware))
}

// registerGraphRoutes adds the graph endpoints to r. auth runs before the
// permission checks of each route.
func registerGraphRoutes(r router, auth ...echo.MiddlewareFunc) {
	with := func(m ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		return append(append([]echo.MiddlewareFunc{}, auth...), m...)
	}

	// Extraction routes
	r.POST("/extract_nodes_with_llm", routes.ExtractNodesHandler, with(middleware.RequirePermission(middleware.PermExtract))...)
	r.POST("/extract_relations", routes.ExtractRelationsHandler, with(middleware.RequirePermission(middleware.PermExtract))...)
	r.POST("/check_extraction_status", routes.CheckExtractionStatusHandler, with()...)

	// Graph read routes
	r.GET("/get_nodes_by_project", routes.GetNodesHandler, with()...)
	r.GET("/get_edges_by_project", routes.GetEdgesHandler, with()...)
	r.GET("/get_neo4j_graph", routes.GetMirrorGraphHandler, with()...)

	// Graph delete routes
	r.POST("/delete_nodes_by_project", routes.DeleteNodesHandler, with(middleware.RequirePermission(middleware.PermDelete))...)
	r.POST("/delete_edges_by_project", routes.DeleteEdgesHandler, with(middleware.RequirePermission(middleware.PermDelete))...)

	// Question answering
	r.POST("/askAI", routes.AskHandler, with()...)
}
