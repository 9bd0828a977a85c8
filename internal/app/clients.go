package app

import (
	"context"
	"fmt"

	redisclient "github.com/Crohnos/dnd-generator/internal/clients/redis"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/platform/anthropic"
	"github.com/Crohnos/dnd-generator/internal/platform/graphql"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type Clients struct {
	Generator anthropic.Client
	// Bus is nil when REDIS_ADDR is unset.
	Bus *redisclient.ProgressBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	gen, err := anthropic.NewClient(log, anthropic.Config{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Timeout: cfg.GenerationTimeout,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init anthropic client: %w", err)
	}
	bus, err := redisclient.NewProgressBus(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init progress bus: %w", err)
	}
	if bus == nil {
		log.Info("REDIS_ADDR not set; progress events are not published")
	}
	return Clients{Generator: gen, Bus: bus}, nil
}

// loadCatalog introspects the remote schema once at startup. The catalogue is
// immutable afterwards.
func loadCatalog(ctx context.Context, log *logger.Logger, cfg Config) (*schema.Catalog, error) {
	var src graphql.Introspector
	if cfg.SchemaFile != "" {
		src = graphql.NewFileSource(cfg.SchemaFile)
	} else {
		c, err := graphql.NewClient(log, graphql.Config{
			Endpoint:    cfg.SchemaEndpoint,
			AdminSecret: cfg.SchemaAdminSecret,
			Timeout:     cfg.IntrospectionTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init introspection client: %w", err)
		}
		src = c
	}
	cat, err := schema.Load(ctx, src, log)
	if err != nil {
		return nil, fmt.Errorf("load schema catalogue: %w", err)
	}
	return cat, nil
}
