package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/database"
	apphttp "github.com/Rafael-2109/frete-sistema-sub002/internal/common/http"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/observability"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/knowledge"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/llm"
)

// Knowledge backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Resources are the connections opened by NewFromConfig.
type Resources struct {
	Postgres *database.PostgresClient
	Redis    *database.RedisClient
}

// Checks returns readiness probes for every open connection.
func (r *Resources) Checks() map[string]apphttp.Check {
	checks := map[string]apphttp.Check{}
	if r.Postgres != nil {
		checks["postgres"] = r.Postgres.Ping
	}
	if r.Redis != nil {
		checks["redis"] = r.Redis.Ping
	}
	return checks
}

// Close releases the Redis client. The Postgres pool belongs to the
// knowledge store and closes with the service.
func (r *Resources) Close() error {
	if r.Redis != nil {
		return r.Redis.Close()
	}
	return nil
}

// NewFromConfig builds the completer, the knowledge store and the service
// from application config. Everything opened is released on failure.
func NewFromConfig(ctx context.Context, cfg *config.Config, obs *observability.Observability, log logger.Logger) (*Service, *Resources, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	completer, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, nil, err
	}

	res := &Resources{}
	store, err := openStore(ctx, cfg, res, log)
	if err != nil {
		_ = res.Close()
		return nil, nil, err
	}

	svc, err := New(Options{
		Pipeline:      cfg.Pipeline,
		LLM:           cfg.LLM,
		Completer:     completer,
		Store:         store,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = res.Close()
		return nil, nil, err
	}
	return svc, res, nil
}

func openStore(ctx context.Context, cfg *config.Config, res *Resources, log logger.Logger) (*knowledge.Store, error) {
	var repo knowledge.Repository
	switch cfg.Knowledge.Backend {
	case BackendNone:
		return nil, nil
	case BackendMemory, "":
		repo = knowledge.NewMemoryRepository()
	case BackendPostgres:
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("postgres ping failed: %w", err)
		}
		res.Postgres = pg
		repo = knowledge.NewPostgresRepository(pg.DB)
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", cfg.Knowledge.Backend)
	}

	if cfg.Database.Redis.Enabled {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			_ = repo.Close()
			return nil, err
		}
		res.Redis = rc
		ttl := time.Duration(cfg.Knowledge.CacheTTL) * time.Second
		repo = knowledge.NewCachedRepository(repo, rc.Client, ttl, log)
	}

	store := knowledge.NewStore(repo, cfg.Knowledge, log)
	if err := store.Open(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return store, nil
}
