package main

import (
	"context"
	"fmt"

	"diagram_engine/internal/assembler"
	"diagram_engine/internal/core"
	"diagram_engine/internal/region"
	"diagram_engine/internal/storage"
	"diagram_engine/src/logger"
	"diagram_engine/src/model"
)

// app holds the wired engine and the stores behind it
type app struct {
	cfg     *model.Config
	engine  *core.Engine
	regions region.Store
	files   *storage.FileDocumentStore // nil unless documents.dir is set
	redis   *storage.RedisStorage      // nil unless redis.url is set
	cancel  context.CancelFunc
}

// newApp picks Redis when a URL is configured and in-memory stores otherwise.
// A documents directory takes precedence over both for accepted documents.
func newApp(ctx context.Context, cfg *model.Config) (*app, error) {
	a := &app{cfg: cfg}
	deps := core.Dependencies{
		Assembly: assembler.Config{
			MaxRounds:  cfg.Assembly.MaxRounds,
			ResumeTail: cfg.Assembly.ResumeTail,
		},
	}

	if cfg.Redis.URL != "" {
		rs, err := storage.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.redis = rs
		deps.Assemblies = rs.Assemblies(cfg.Assembly.TTL)
		deps.Regions = rs.Regions(cfg.Region.TTL)
		deps.Documents = rs.Documents(cfg.Documents.TTL)
		logger.Info().Msg("using redis stores")
	} else {
		regions := region.NewMemoryStore(cfg.Region.TTL)
		sweepCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		go regions.Run(sweepCtx, cfg.Region.SweepInterval)

		deps.Assemblies = assembler.NewMemoryStore(cfg.Assembly.TTL)
		deps.Regions = regions
		deps.Documents = storage.NewMemoryDocumentStore(cfg.Documents.TTL)
		logger.Info().Msg("using in-memory stores")
	}

	if cfg.Documents.Dir != "" {
		a.files = storage.NewFileDocumentStore(cfg.Documents.Dir, cfg.Documents.MaxRevisions)
		deps.Documents = a.files
	}
	a.regions = deps.Regions

	engine, err := core.NewEngine(ctx, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine = engine
	return a, nil
}

func (a *app) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis")
		}
	}
}
