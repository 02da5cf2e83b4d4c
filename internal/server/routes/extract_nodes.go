package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/finkg/backend/internal/queue"
	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ExtractNodesHandler runs node extraction over the requested announcements
// and streams its progress as newline-delimited JSON. Input errors are
// answered with a plain envelope before the stream starts.
func ExtractNodesHandler(c echo.Context) error {
	type extractNodesBody struct {
		ProjectID       common.ID   `json:"project_id" validate:"required"`
		AnnouncementIDs []common.ID `json:"announcement_ids" validate:"required,min=1"`
	}

	app := c.(*middleware.AppContext).App

	data := new(extractNodesBody)
	if err := c.Bind(data); err != nil {
		return util.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(data); err != nil {
		return util.Fail(c, http.StatusBadRequest, "project_id and announcement_ids are required")
	}
	projectID := util.ProjectID(c, data.ProjectID)
	ids := util.NormalizeIDs(data.AnnouncementIDs)
	if projectID == "" || len(ids) == 0 {
		return util.Fail(c, http.StatusBadRequest, "project_id and announcement_ids are required")
	}

	ctx := c.Request().Context()
	announcements, err := app.Store.GetAnnouncementsByIDs(ctx, ids)
	if err != nil {
		logger.Error("[Extract] Failed to load announcements", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to load announcements")
	}

	job, err := graph.NewNodeJob(projectID, announcements, app.Extractor, app.Sync)
	if errors.Is(err, graph.ErrNoAnnouncements) {
		return util.Fail(c, http.StatusNotFound, "No announcements found for the given ids")
	}
	if err != nil {
		return util.Fail(c, http.StatusInternalServerError, err.Error())
	}
	job.OnSaved = func(ctx context.Context, nodes []common.Node) {
		if err := queue.PublishProject(ctx, app.Queue, queue.EmbedQueue, projectID); err != nil {
			logger.Warn("[Extract] Failed to enqueue node embeddings", "project_id", projectID, "err", err)
		}
		archive(ctx, app, projectID, "nodes", graph.NodeResultData{Nodes: nodes, Count: len(nodes), ProjectID: projectID})
	}

	logger.Info("[Extract] Node extraction started", "project_id", projectID, "announcements", len(announcements))

	write := util.StartNDJSON(c)
	for event := range job.Run(ctx) {
		if err := write(event); err != nil {
			// The job runs detached from the request and its channel is
			// buffered, so it finishes on its own.
			logger.Warn("[Extract] Progress stream closed by client", "project_id", projectID, "err", err)
			return nil
		}
	}
	return nil
}

func archive(ctx context.Context, app *middleware.App, projectID, kind string, payload any) {
	if app.Archive == nil {
		return
	}
	key, err := app.Archive.ArchiveExtraction(ctx, projectID, kind, payload)
	if err != nil {
		logger.Warn("[Extract] Failed to archive extraction", "project_id", projectID, "kind", kind, "err", err)
		return
	}
	logger.Debug("[Extract] Archived extraction", "project_id", projectID, "key", key)
}
