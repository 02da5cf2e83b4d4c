package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ProjectMsg is the body of mirror and embedding jobs.
type ProjectMsg struct {
	ProjectID string `json:"project_id"`
}

var errMissingProject = errors.New("message has no project_id")

// PublishProject enqueues a project job. A nil publisher is a no-op, so
// callers do not need to check whether RabbitMQ is configured.
func PublishProject(ctx context.Context, p Publisher, queueName, projectID string) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(ProjectMsg{ProjectID: projectID})
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, queueName, body); err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}

func decodeProjectMsg(body []byte) (ProjectMsg, error) {
	var msg ProjectMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return ProjectMsg{}, fmt.Errorf("decode message: %w", err)
	}
	msg.ProjectID = strings.TrimSpace(msg.ProjectID)
	if msg.ProjectID == "" {
		return ProjectMsg{}, errMissingProject
	}
	return msg, nil
}
