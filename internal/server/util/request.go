package util

import (
	"strings"

	"github.com/finkg/backend/pkg/common"

	"github.com/labstack/echo/v4"
)

// ProjectID returns the project id from the decoded body, falling back to
// the project_id query parameter.
func ProjectID(c echo.Context, fromBody common.ID) string {
	if id := strings.TrimSpace(string(fromBody)); id != "" {
		return id
	}
	return strings.TrimSpace(c.QueryParam("project_id"))
}

// NormalizeIDs trims ids and drops blanks and repeats, keeping the first
// occurrence.
func NormalizeIDs(ids []common.ID) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s := strings.TrimSpace(string(id))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
