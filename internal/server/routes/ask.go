package routes

import (
	"net/http"
	"strings"

	"github.com/finkg/backend/internal/server/middleware"
	"github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AskHandler answers a question from the nodes and edges of a project.
func AskHandler(c echo.Context) error {
	type askBody struct {
		ID    common.ID `json:"id" validate:"required"`
		Query string    `json:"query" validate:"required"`
	}
	type askResponse struct {
		Success bool   `json:"success"`
		Status  int    `json:"status"`
		Answer  string `json:"answer"`
	}

	data := new(askBody)
	if err := c.Bind(data); err != nil {
		return util.Fail(c, http.StatusBadRequest, "Invalid request body")
	}
	projectID := strings.TrimSpace(string(data.ID))
	question := strings.TrimSpace(data.Query)
	if err := c.Validate(data); err != nil || projectID == "" || question == "" {
		return util.Fail(c, http.StatusBadRequest, "id and query are required")
	}

	app := c.(*middleware.AppContext).App
	answer, err := app.Answerer.Ask(c.Request().Context(), projectID, question)
	if err != nil {
		logger.Error("[Query] Failed to answer question", "project_id", projectID, "err", err)
		return util.Fail(c, http.StatusInternalServerError, "Failed to answer question")
	}

	return c.JSON(http.StatusOK, askResponse{Success: true, Status: http.StatusOK, Answer: answer})
}
