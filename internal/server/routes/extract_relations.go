package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/finkg/backend/internal/queue"
	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

const relationAnnouncementLimit = 10

type edgesData struct {
	Edges       []common.EdgeWithNodes `json:"edges"`
	Count       int                    `json:"count"`
	ProjectID   string                 `json:"project_id"`
	MirrorError string                 `json:"mirror_error,omitempty"`
}

// ExtractRelationsHandler extracts relations between the stored nodes of a
// project and replaces the edges of the requested relation mode.
func ExtractRelationsHandler(c echo.Context) error {
	type extractRelationsBody struct {
		ProjectID    common.ID `json:"project_id" validate:"required"`
		RelationType string    `json:"relation_type"`
		ModelBase    string    `json:"model_base"`
	}

	app := c.(*middleware.AppContext).App

	data := new(extractRelationsBody)
	if err := c.Bind(data); err != nil {
		return util.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	projectID := util.ProjectID(c, data.ProjectID)
	if err := c.Validate(data); err != nil || projectID == "" {
		return util.Fail(c, http.StatusBadRequest, "project_id is required")
	}
	mode, err := common.ParseRelationMode(data.RelationType)
	if err != nil {
		return util.Fail(c, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	nodes, err := app.Store.GetNodes(ctx, projectID)
	if err != nil {
		logger.Error("[Extract] Failed to load nodes", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to load nodes")
	}
	if len(nodes) == 0 {
		return util.Fail(c, http.StatusNotFound, fmt.Sprintf("No nodes found for project %s", projectID))
	}

	empty := edgesData{Edges: []common.EdgeWithNodes{}, ProjectID: projectID}

	modelBase := strings.ToLower(strings.TrimSpace(data.ModelBase))
	if modelBase != "" && modelBase != common.SourceLLM {
		logger.Info("[Extract] Model base extracts no relations", "project_id", projectID, "model_base", data.ModelBase)
		return util.OK(c, "Relation extraction finished", empty)
	}

	announcements, err := app.Store.GetProjectAnnouncements(ctx, projectID, relationAnnouncementLimit)
	if err != nil {
		logger.Warn("[Extract] Failed to load project announcements", "project_id", projectID, "err", err)
		announcements = nil
	}

	extraction := app.Extractor.ExtractEdges(ctx, nodes, mode, projectID, announcements)
	if errors.Is(extraction.Err, common.ErrInvalidRelationMode) {
		return util.Fail(c, http.StatusBadRequest, extraction.Err.Error())
	}
	if len(extraction.Edges) == 0 {
		logger.Info("[Extract] No relations extracted", "project_id", projectID, "mode", mode, "dropped", extraction.Dropped)
		return util.OK(c, "Relation extraction finished", empty)
	}

	result, err := app.Sync.ReplaceEdges(ctx, projectID, extraction.Edges, mode)
	if err != nil && !graph.IsMirrorError(err) {
		logger.Error("[Extract] Failed to save relations", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to save relations")
	}

	out := edgesData{
		Edges:     common.WithNodes(result.Edges, nodes),
		ProjectID: projectID,
	}
	out.Count = len(out.Edges)
	if len(result.Edges) > 0 {
		archive(ctx, app, projectID, "edges:"+string(mode), out)
	}

	if err != nil {
		out.MirrorError = err.Error()
		if qerr := queue.PublishProject(ctx, app.Queue, queue.MirrorQueue, projectID); qerr != nil {
			logger.Warn("[Extract] Failed to enqueue mirror repair", "project_id", projectID, "err", qerr)
		}
		return util.Respond(c, http.StatusMultiStatus, "Relations saved, graph mirror update failed", out)
	}
	return util.OK(c, "Relation extraction finished", out)
}
