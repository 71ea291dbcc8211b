package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"d3fend-graphx/internal/builder"
	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/neo4j"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/sparql"
)

// Open wires a pipeline from configuration. Backends without settings are left
// out; running a query against them fails with ErrBackendUnavailable. The
// returned close function releases the Neo4j driver.
func Open(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Pipeline, func(context.Context) error, error) {
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}

	p := &Pipeline{
		Catalog:   cat,
		Executors: make(map[resultset.Backend]Executor),
		Builder:   builder.DefaultConfig(),
		Timeout:   cfg.Server.QueryTimeout,
		Metrics:   m,
		Logger:    logger,
	}
	closer := func(context.Context) error { return nil }

	if cfg.GraphDB.Configured() {
		p.Executors[resultset.GraphDB] = sparql.NewClient(cfg.GraphDB.URL, cfg.GraphDB.Repository, sparql.WithLogger(logger))
	}

	if cfg.Neo4j.Configured() {
		client, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password,
			neo4j.WithDatabase(cfg.Neo4j.Database),
			neo4j.WithLogger(logger),
			neo4j.WithPool(cfg.Neo4j.MaxPoolSize, 30*time.Second, time.Hour),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create neo4j client: %w", err)
		}
		p.Executors[resultset.Neo4j] = client
		p.Expander = client
		closer = client.Close
	}

	return p, closer, nil
}
