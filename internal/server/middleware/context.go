package middleware

import (
	"context"

	"github.com/finkg/backend/internal/queue"
	"github.com/finkg/backend/internal/storage"
	"github.com/finkg/backend/pkg/common"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/store"
	"github.com/finkg/backend/pkg/store/neo4j"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Store is the relational side the handlers read from.
type Store interface {
	store.GraphStorage
	store.AnnouncementStorage
}

type Extractor interface {
	graph.NodeExtractor
	ExtractEdges(
		ctx context.Context,
		nodes []common.Node,
		mode common.RelationMode,
		projectID string,
		announcements []common.Announcement,
	) graph.EdgeExtraction
}

type Answerer interface {
	Ask(ctx context.Context, projectID, question string) (string, error)
}

type GraphViewer interface {
	GetProjectGraph(ctx context.Context, projectID string) (neo4j.ProjectGraph, error)
}

// App holds the dependencies shared by every request. It is built once at
// startup. GraphView, Queue, Archive and Key are nil when the matching
// integration is not configured.
type App struct {
	Store     Store
	Sync      *graph.Synchronizer
	Extractor Extractor
	Answerer  Answerer
	GraphView GraphViewer
	Queue     queue.Publisher
	Archive   storage.Archiver

	Key            keyfunc.Keyfunc
	AuthSecret     []byte
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
