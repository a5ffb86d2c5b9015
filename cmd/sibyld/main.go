// Command sibyld runs Sibyl's storage-and-job backend: it wires the
// graph/chunk/relational stores, the authorization kernel, the event
// fabric, and the job workers together, then services jobs until told
// to stop. HTTP/gRPC transport and routing are explicitly out of scope
// (see DESIGN.md): sibyld is the process other front ends (a REST API,
// a CLI, a future gateway) would embed or sit in front of.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sibyl-platform/sibyl/internal/authz"
	"github.com/sibyl-platform/sibyl/internal/chunkstore"
	"github.com/sibyl-platform/sibyl/internal/config"
	"github.com/sibyl-platform/sibyl/internal/crawl"
	"github.com/sibyl-platform/sibyl/internal/embedder"
	"github.com/sibyl-platform/sibyl/internal/events"
	"github.com/sibyl-platform/sibyl/internal/graphstore"
	"github.com/sibyl-platform/sibyl/internal/jobs"
	"github.com/sibyl-platform/sibyl/internal/llm"
	"github.com/sibyl-platform/sibyl/internal/model"
	"github.com/sibyl-platform/sibyl/internal/relational"
	"github.com/sibyl-platform/sibyl/internal/retrieval"
	"github.com/sibyl-platform/sibyl/internal/search"
	"github.com/sibyl-platform/sibyl/internal/secrets"
	"github.com/sibyl-platform/sibyl/internal/sessionmem"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("sibyld exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting sibyld", "environment", cfg.Environment, "disable_auth", cfg.DisableAuth)

	db, err := relational.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	graph, err := graphstore.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return fmt.Errorf("connect neo4j: %w", err)
	}
	defer graph.Close(ctx)
	slog.Info("connected to neo4j")

	chunks, err := chunkstore.NewQdrantStore(cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("connect qdrant (chunks): %w", err)
	}
	defer chunks.Close()
	slog.Info("connected to qdrant", "purpose", "chunks")

	entityVectors, err := retrieval.NewEntityVectorStore(cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("connect qdrant (entity vectors): %w", err)
	}
	defer entityVectors.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	jobsOpts := *redisOpts
	jobsOpts.DB = cfg.RedisJobsDB
	jobsClient := redis.NewClient(&jobsOpts)
	defer jobsClient.Close()

	pubsubOpts := *redisOpts
	pubsubOpts.DB = cfg.RedisPubSubDB
	pubsubClient := redis.NewClient(&pubsubOpts)
	defer pubsubClient.Close()
	slog.Info("connected to redis", "jobs_db", cfg.RedisJobsDB, "pubsub_db", cfg.RedisPubSubDB)

	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	slog.Info("initialized ollama embedder", "model", cfg.OllamaEmbeddingModel)

	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized ollama llm client", "model", cfg.OllamaLLMModel)

	if _, err := secrets.Singleton(cfg.SettingsEncryptionKey, ""); err != nil {
		return fmt.Errorf("init settings encryption: %w", err)
	}

	// Backend bundles the pieces a request-serving front end (outside
	// this process's scope; HTTP/gRPC transport is a Non-goal, see
	// DESIGN.md) would need to resolve credentials and answer
	// Search/Explore calls, built here so that front end can share this
	// process's store connections instead of reconnecting.
	backend := newBackend(cfg, db, graph, chunks, entityVectors, embed, llmClient)
	slog.Info("composed backend dependencies", "disable_auth", cfg.DisableAuth, "reranker", fmt.Sprintf("%T", backend.Search.Reranker))

	registry := events.NewConnectionRegistry(logger)
	bridge := events.NewBridge(pubsubClient, registry, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("event bridge stopped", "error", err)
		}
	}()

	queue := jobs.NewQueue(jobsClient)
	worker := jobs.NewWorker(queue, jobsClient, logger)

	sourceStore := relational.NewSourceStore(db)
	crawler := crawl.New(
		crawl.NewHTTPFetcher(0),
		nil, // headless fetcher constructed lazily per-source by crawl_source callers that set UseHeadless; see DESIGN.md
		embed,
		chunks,
		sourceStore,
		bridge,
		logger,
	)
	crawler.RegisterHandlers(worker)

	sessionStore := sessionmem.DefaultStore()
	sessionmem.RegisterHandlers(worker, sessionStore, sessionmem.StubRunner{}, bridge)

	registerEntityJobHandlers(worker, graph)

	slog.Info("registered job handlers",
		"kinds", []jobs.Kind{
			jobs.KindCrawlSource, jobs.KindSyncSource,
			jobs.KindRunAgentExecution, jobs.KindResumeAgentExecution, jobs.KindGenerateStatusHint,
			jobs.KindCreateEntity, jobs.KindUpdateEntity,
		})
	slog.Warn("job kinds left unregistered pending agent/LLM orchestration scope",
		"kinds", []jobs.Kind{
			jobs.KindCreateLearningEpisode, jobs.KindRunBrainstorming,
			jobs.KindRunSynthesis, jobs.KindRunMaterialization,
		})

	workerKinds := []jobs.Kind{
		jobs.KindCrawlSource, jobs.KindSyncSource,
		jobs.KindRunAgentExecution, jobs.KindResumeAgentExecution, jobs.KindGenerateStatusHint,
		jobs.KindCreateEntity, jobs.KindUpdateEntity,
	}
	errCh := make(chan error, len(workerKinds))
	for _, kind := range workerKinds {
		go func() {
			if err := worker.Run(ctx, kind); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("worker for kind %q stopped: %w", kind, err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	cancel()
	slog.Info("sibyld stopped")
	return nil
}

// Backend is everything a request-serving front end needs once sibyld's
// stores are connected: credential resolution and the Search/Explore
// dependency bundle. sibyld itself doesn't call either; routing an
// actual request to them is the out-of-scope HTTP/gRPC layer's job.
type Backend struct {
	Resolver *authz.Resolver
	Roles    authz.ProjectRoleSource
	Search   search.Deps
}

func newBackend(
	cfg *config.Config,
	db *relational.DB,
	graph graphstore.Store,
	chunks chunkstore.Store,
	entityVectors *retrieval.EntityVectorStore,
	embed embedder.Embedder,
	llmClient llm.LLM,
) Backend {
	orgStore := relational.NewOrgStore(db)
	apiKeyStore := relational.NewApiKeyStore(db)
	jwtManager := authz.NewJWTManager(cfg.JWTSecret, "sibyl")

	return Backend{
		Resolver: authz.NewResolver(jwtManager, orgStore, apiKeyStore, cfg.DisableAuth, cfg.Environment),
		Roles:    authz.NewRelationalRoleSource(orgStore),
		Search: search.Deps{
			Graph:         graph,
			Chunks:        chunks,
			EntityVectors: entityVectors,
			EntityBM25:    retrieval.NewRegistry(),
			ChunkBM25:     retrieval.NewRegistry(),
			Embedder:      embed,
			Reranker:      retrieval.NewLLMReranker(llmClient, cfg.OllamaLLMModel),
			Decay:         retrieval.DefaultDecayConfig,
		},
	}
}

// entityJobArgs is the JSON shape enqueued for both create_entity and
// update_entity: an organization scope plus the entity payload itself.
type entityJobArgs struct {
	OrganizationID string       `json:"organization_id"`
	Entity         model.Entity `json:"entity"`
}

func (a entityJobArgs) parseOrgID() (uuid.UUID, error) {
	id, err := uuid.Parse(a.OrganizationID)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("sibyld: invalid organization_id %q: %w", a.OrganizationID, err)
	}
	return id, nil
}

// registerEntityJobHandlers binds create_entity/update_entity directly to
// graph, thin enough that neither needs its own package (unlike
// crawl_source/sync_source and the agent-execution kinds): there's no
// orchestration beyond "validate the org ID and call the store."
func registerEntityJobHandlers(w *jobs.Worker, graph graphstore.Store) {
	w.Register(jobs.KindCreateEntity, func(ec jobs.ExecContext, raw json.RawMessage) (any, error) {
		var args entityJobArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("sibyld: decode create_entity args: %w", err)
		}
		groupID, err := args.parseOrgID()
		if err != nil {
			return nil, err
		}
		created, err := graph.CreateEntity(ec.Context, groupID, &args.Entity)
		if err != nil {
			return nil, fmt.Errorf("sibyld: create entity: %w", err)
		}
		return created, nil
	})

	w.Register(jobs.KindUpdateEntity, func(ec jobs.ExecContext, raw json.RawMessage) (any, error) {
		var args entityJobArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("sibyld: decode update_entity args: %w", err)
		}
		groupID, err := args.parseOrgID()
		if err != nil {
			return nil, err
		}
		updated, err := graph.UpdateEntity(ec.Context, groupID, &args.Entity)
		if err != nil {
			return nil, fmt.Errorf("sibyld: update entity: %w", err)
		}
		return updated, nil
	})
}
