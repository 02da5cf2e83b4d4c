package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/finkg/backend/internal/queue"
	mid "github.com/finkg/backend/internal/server/middleware"
	srvutil "github.com/finkg/backend/internal/server/util"
	"github.com/finkg/backend/internal/setup"
	"github.com/finkg/backend/internal/storage"
	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/logger"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewEcho returns an echo instance with the validator, the shared app
// context and the standard middlewares installed.
func NewEcho(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = srvutil.NewValidator()

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("16M"))

	RegisterRoutes(e)
	return e
}

func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := setup.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	pool, err := setup.NewPool(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer pool.Close()

	mirror, err := setup.NewMirror(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to neo4j", "err", err)
	}

	aiClient, err := setup.NewAIClient()
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	g, err := setup.NewGraph(pool, mirror, aiClient)
	if err != nil {
		logger.Fatal("Failed to create graph services", "err", err)
	}

	app := &mid.App{
		Store:      g.Store,
		Sync:       g.Sync,
		Extractor:  g.Extractor,
		Answerer:   g.Answerer,
		AuthSecret: []byte(util.GetEnv("AUTH_SECRET")),
	}

	if mirror != nil {
		defer mirror.Close(context.Background())
		app.GraphView = mirror
	} else {
		logger.Warn("NEO4J_URI not set, graph mirror disabled")
	}

	if authURL := util.GetEnv("AUTH_URL"); authURL != "" {
		k, err := keyfunc.NewDefault([]string{authURL + "/jwks"})
		if err != nil {
			logger.Fatal("Failed to load jwks keys", "err", err)
		}
		app.Key = k
	}

	que, err := queue.Init()
	switch {
	case err == nil:
		defer que.Close()
		ch, err := que.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		if err := queue.SetupQueues(ch, queue.Queues); err != nil {
			logger.Fatal("Failed to declare queues", "err", err)
		}
		app.Queue = queue.NewChannelPublisher(ch)
	case errors.Is(err, queue.ErrNotConfigured):
		logger.Warn("RabbitMQ not configured, mirror repair and background embeddings disabled")
	default:
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	if s3Client := storage.NewS3Client(ctx); s3Client != nil {
		app.Archive = storage.NewS3Archive(s3Client, util.GetEnv("AWS_BUCKET"))
	}

	app.MasterAPIKey = util.GetEnv("MASTER_API_KEY")
	app.MasterUserID, _ = strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	app.MasterUserRole = util.GetEnv("MASTER_USER_ROLE")

	e := NewEcho(app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
