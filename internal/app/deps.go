package app

import (
	"context"
	"fmt"

	"github.com/friendgraph/backend/internal/auth"
	"github.com/friendgraph/backend/internal/config"
	"github.com/friendgraph/backend/internal/db"
	"github.com/friendgraph/backend/internal/events"
	"github.com/friendgraph/backend/internal/handlers"
	"github.com/friendgraph/backend/internal/middleware"
	"github.com/friendgraph/backend/internal/relationships"
	"github.com/friendgraph/backend/internal/repositories"
	"github.com/friendgraph/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup releases connections opened here; the pool stays owned by the caller.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	cleanup := func(context.Context) error { return nil }

	var publishers events.Fanout
	if cfg.NatsURL != "" {
		natsPublisher, err := events.NewNatsPublisher(ctx, cfg.NatsURL)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("connect event publisher: %w", err)
		}
		publishers = append(publishers, natsPublisher)
		cleanup = func(context.Context) error { return natsPublisher.Close() }
	}
	if cfg.Archive.Bucket != "" {
		archive, err := storage.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, fmt.Errorf("configure event archive: %w", err)
		}
		publishers = append(publishers, archive)
	}

	var publisher relationships.Publisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	sessions := auth.NewManager(cfg.AccessTTL, cfg.RefreshTTL, repositories.NewPostgresSessionStore(pool))
	relationshipStore := repositories.NewPostgresRelationshipStore(pool)

	deps := handlers.Dependencies{
		Users:         repositories.NewPostgresUserRepository(pool),
		Sessions:      sessions,
		Tokens:        sessions,
		Engine:        relationships.NewEngine(relationshipStore, publisher),
		Relationships: relationshipStore,
		Limiter: middleware.NewKeyedRateLimiter(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Window,
			cfg.RateLimit.Burst,
			cfg.RateLimit.TTL,
		),
		Database: pool,
	}

	return deps, cleanup, nil
}
