package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/logger"
)

// JobState is the lifecycle state of a node extraction job.
type JobState string

const (
	JobIdle       JobState = "idle"
	JobProcessing JobState = "processing"
	JobSaving     JobState = "saving"
	JobComplete   JobState = "complete"
	JobFailed     JobState = "failed"
)

// NodeResultData is the payload of the terminal complete event.
type NodeResultData struct {
	Nodes     []common.Node `json:"nodes"`
	Count     int           `json:"count"`
	ProjectID string        `json:"project_id"`
}

// ProgressEvent is one line of the extraction progress stream.
type ProgressEvent struct {
	Progress int             `json:"progress"`
	Message  string          `json:"message"`
	Status   JobState        `json:"status"`
	Data     *NodeResultData `json:"data,omitempty"`
}

// Terminal reports whether no further events follow e.
func (e ProgressEvent) Terminal() bool {
	return e.Status == JobComplete || e.Status == JobFailed
}

type NodeExtractor interface {
	ExtractNodes(ctx context.Context, text string, projectID string) NodeExtraction
}

type NodeSaver interface {
	ReplaceNodes(ctx context.Context, projectID string, nodes []common.Node) ([]common.Node, error)
}

// NodeJob extracts nodes from a list of announcements one after the other
// and saves their union as the project's node set.
type NodeJob struct {
	projectID     string
	announcements []common.Announcement
	extractor     NodeExtractor
	saver         NodeSaver

	mu    sync.Mutex
	state JobState
	// OnSaved is called with the saved nodes before the complete event is
	// emitted.
	OnSaved func(ctx context.Context, nodes []common.Node)
}

// NewNodeJob validates the input and returns a job in the idle state.
func NewNodeJob(projectID string, announcements []common.Announcement, extractor NodeExtractor, saver NodeSaver) (*NodeJob, error) {
	if len(announcements) == 0 {
		return nil, ErrNoAnnouncements
	}
	return &NodeJob{
		projectID:     projectID,
		announcements: announcements,
		extractor:     extractor,
		saver:         saver,
		state:         JobIdle,
	}, nil
}

func (j *NodeJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *NodeJob) setState(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

// Run starts the job and returns its event stream. The channel is closed
// after the terminal event. Announcements are processed in the given order
// and the job keeps running when ctx is cancelled, so a disconnecting
// client does not leave a half written node set behind.
func (j *NodeJob) Run(ctx context.Context) <-chan ProgressEvent {
	n := len(j.announcements)
	events := make(chan ProgressEvent, n+2)
	ctx = context.WithoutCancel(ctx)

	j.setState(JobProcessing)
	go func() {
		defer close(events)

		var nodes []common.Node
		for i, a := range j.announcements {
			res := j.extractor.ExtractNodes(ctx, a.Content, j.projectID)
			nodes = append(nodes, res.Nodes...)

			done := i + 1
			events <- ProgressEvent{
				Progress: progressPercent(done, n),
				Message:  progressMessage(done, n, a, res),
				Status:   JobProcessing,
			}
		}

		nodes = DedupeNodes(nodes)
		if len(nodes) == 0 {
			j.setState(JobComplete)
			events <- ProgressEvent{
				Progress: 100,
				Message:  "No nodes extracted, stored nodes were kept",
				Status:   JobComplete,
				Data:     &NodeResultData{Nodes: []common.Node{}, Count: 0, ProjectID: j.projectID},
			}
			return
		}

		j.setState(JobSaving)
		saved, err := j.saver.ReplaceNodes(ctx, j.projectID, nodes)
		if err != nil {
			logger.Error("[Extract] Failed to save nodes", "project_id", j.projectID, "err", err)
			j.setState(JobFailed)
			events <- ProgressEvent{
				Progress: 100,
				Message:  fmt.Sprintf("Failed to save nodes: %v", err),
				Status:   JobFailed,
			}
			return
		}
		if j.OnSaved != nil {
			j.OnSaved(ctx, saved)
		}

		j.setState(JobComplete)
		events <- ProgressEvent{
			Progress: 100,
			Message:  fmt.Sprintf("Extracted %d nodes from %d announcements", len(saved), n),
			Status:   JobComplete,
			Data:     &NodeResultData{Nodes: saved, Count: len(saved), ProjectID: j.projectID},
		}
	}()

	return events
}

// progressPercent rounds up, so the first event of a long job is never 0.
func progressPercent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return (done*100 + total - 1) / total
}

func progressMessage(done, total int, a common.Announcement, res NodeExtraction) string {
	label := a.Title
	if label == "" {
		label = a.ID
	}
	msg := fmt.Sprintf("Processed announcement %d/%d (%s): %d nodes", done, total, label, len(res.Nodes))
	if res.Attempts > 1 {
		msg += fmt.Sprintf(", retried %d times", res.Attempts-1)
	}
	if res.Err != nil {
		msg += ", extraction failed"
	}
	return msg
}
