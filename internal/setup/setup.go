// Package setup builds the long-lived clients shared by the server and the
// worker from the environment.
package setup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/ai"
	oai "github.com/finkg/backend/pkg/ai/ollama"
	gai "github.com/finkg/backend/pkg/ai/openai"
	"github.com/finkg/backend/pkg/graph"
	"github.com/finkg/backend/pkg/leaselock"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/query"
	"github.com/finkg/backend/pkg/store/neo4j"
	pgxstore "github.com/finkg/backend/pkg/store/pgx"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// NewAIClient returns the adapter selected by AI_ADAPTER.
func NewAIClient() (ai.GraphAIClient, error) {
	timeout := util.GetEnvSeconds("AI_TIMEOUT_SEC", 120)
	parallel := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		return oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: parallel,
			Timeout:               timeout,
		})
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:   util.GetEnv("AI_EMBED_MODEL"),
			DescriptionModel: util.GetEnv("AI_CHAT_DESCRIBE_MODEL"),
			ExtractionModel:  util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: parallel,
			Timeout:               timeout,
		}), nil
	}
}

// NewPool connects to DATABASE_URL. pgvector types are registered on every
// new connection, which has to be configured before the pool is created.
func NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	err = util.RetryErrWithBackoff(ctx, 5, time.Second, 10*time.Second, pool.Ping)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies the SQL migrations in MIGRATIONS_PATH.
func Migrate() error {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("Database schema ready", "version", version, "dirty", dirty)
	return nil
}

// NewMirror connects to Neo4j. It returns nil without error when NEO4J_URI
// is not set.
func NewMirror(ctx context.Context) (*neo4j.Neo4jStorage, error) {
	uri := util.GetEnv("NEO4J_URI")
	if uri == "" {
		return nil, nil
	}
	return neo4j.Connect(ctx, neo4j.Config{
		URI:                   uri,
		Username:              util.GetEnvString("NEO4J_USER", "neo4j"),
		Password:              util.GetEnv("NEO4J_PASSWORD"),
		Database:              util.GetEnv("NEO4J_DATABASE"),
		MaxConnectionPoolSize: int(util.GetEnvNumeric("NEO4J_POOL_SIZE", 50)),
	})
}

// Graph bundles the graph services built on one pool.
type Graph struct {
	Store     *pgxstore.GraphDBStorage
	Sync      *graph.Synchronizer
	Extractor *graph.GraphClient
	Answerer  *query.Answerer
}

// NewGraph wires the relational store, the optional mirror, the project
// lease lock and the AI backed services.
func NewGraph(pool *pgxpool.Pool, mirror *neo4j.Neo4jStorage, aiClient ai.GraphAIClient) (*Graph, error) {
	st := pgxstore.NewGraphDBStorageWithConnection(pool,
		pgxstore.WithCopyChunk(int(util.GetEnvNumeric("DB_COPY_CHUNK", 1000))),
	)

	opts := []graph.SynchronizerOption{
		graph.WithLocker(leaselock.New(pool), util.GetEnvSeconds("LOCK_TTL_SEC", 300)),
	}
	if mirror != nil {
		opts = append(opts, graph.WithMirror(mirror))
	}

	extractor, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:    aiClient,
		MaxAttempts: int(util.GetEnvNumeric("AI_MAX_RETRIES", 2)),
		Timeout:     util.GetEnvSeconds("AI_TIMEOUT_SEC", 120),
	})
	if err != nil {
		return nil, err
	}

	answerer := query.NewAnswerer(aiClient, st, st,
		query.WithParallel(int(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))),
		query.WithTopK(int(util.GetEnvNumeric("QA_TOP_K", 5))),
		query.WithChatModel(util.GetEnv("AI_CHAT_ANSWER_MODEL")),
		query.WithTracer(query.LogTracer{}),
	)

	return &Graph{
		Store:     st,
		Sync:      graph.NewSynchronizer(st, opts...),
		Extractor: extractor,
		Answerer:  answerer,
	}, nil
}
