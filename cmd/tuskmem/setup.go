package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/observability"
	"github.com/sandevgo/tuskmem/internal/providers/rag"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/sandevgo/tuskmem/internal/storage/vector"
	"github.com/sandevgo/tuskmem/internal/transport/httpapi"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/srv"
)

// App holds the wired engine shared by every command.
type App struct {
	AppCfg    *config.AppConfig
	MemoryCfg *config.MemoryConfig
	Metrics   *observability.Metrics
	DB        *sql.DB
	Turns     *sqlite.TurnsRepo
	Store     *vector.Store
	Memory    *memory.Memory

	// cleanup releases storage and caches, in reverse order of creation
	cleanup srv.Service
}

func (a *App) Close(ctx context.Context) {
	if err := a.cleanup.Shutdown(ctx); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to release resources")
	}
}

func NewApp(ctx context.Context) *App {
	logger := log.FromCtx(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	embCfg := config.NewEmbeddingConfig(ctx)
	vecCfg := config.NewVectorConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)

	metrics := observability.NewMetrics(appCfg.MetricsNamespace)
	var closers []func() error

	// 2. Conversation log
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize conversation log")
	}
	closers = append(closers, db.Close)

	// 3. Embedding client
	embedder, closeCache, err := rag.NewClientFromConfig(ctx, embCfg, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize embedding client")
	}
	closers = append(closers, closeCache)

	// 4. Vector store
	store, err := vector.NewStoreFromConfig(ctx, vecCfg, appCfg.GetVectorPath(), embCfg.Dimensions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vector store")
	}
	closers = append(closers, store.Close)

	// 5. Memory engine
	turns := sqlite.NewTurnsRepo(db)
	mem := memory.NewMemory(*memCfg, embedder, store, turns, newTokenCounter(ctx), metrics)

	return &App{
		AppCfg:    appCfg,
		MemoryCfg: memCfg,
		Metrics:   metrics,
		DB:        db,
		Turns:     turns,
		Store:     store,
		Memory:    mem,
		cleanup:   srv.NewCleanup(closers...),
	}
}

// NewServices returns the long running services of `tuskmem serve`.
func NewServices(ctx context.Context, app *App) []srv.Service {
	services := []srv.Service{app.cleanup}

	if app.AppCfg.EnableIndexer {
		services = append(services, memory.NewIndexer(
			app.Turns,
			app.Turns,
			app.Memory,
			app.Metrics,
			app.AppCfg.IndexInterval,
			app.AppCfg.IndexBatchSize,
		))
	}

	services = append(services, httpapi.New(ctx, app.AppCfg.HTTPAddr, *app.MemoryCfg, app.Memory, app.Metrics))
	return services
}

func newTokenCounter(ctx context.Context) core.TokenCounter {
	tok, err := rag.DefaultTokenizer()
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("tiktoken unavailable, counting words")
		return rag.WordCounter{}
	}
	return tok
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
