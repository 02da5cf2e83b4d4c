package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNoAnnouncements = errors.New("no announcements found")
	ErrNoNodes         = errors.New("no nodes found for project")
)

// MirrorError reports that the relational write succeeded but the graph
// mirror could not be brought up to date. It is returned together with a
// valid result, so callers check for it with errors.As.
type MirrorError struct {
	ProjectID string
	Err       error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("graph mirror out of sync for project %s: %v", e.ProjectID, e.Err)
}

func (e *MirrorError) Unwrap() error {
	return e.Err
}
