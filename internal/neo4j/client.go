package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"d3fend-graphx/internal/resultset"
)

// Runner executes one Cypher statement and buffers its records.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Client runs read queries against a Neo4j database.
type Client struct {
	Driver neo4j.DriverWithContext

	runner Runner
	logger *zap.Logger
}

type options struct {
	database           string
	logger             *zap.Logger
	maxPoolSize        int
	acquisitionTimeout time.Duration
	maxLifetime        time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithDatabase selects the database; empty uses the server default.
func WithDatabase(name string) Option {
	return func(o *options) { o.database = name }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPool tunes the driver connection pool. Zero values keep driver defaults.
func WithPool(maxSize int, acquisitionTimeout, maxLifetime time.Duration) Option {
	return func(o *options) {
		o.maxPoolSize = maxSize
		o.acquisitionTimeout = acquisitionTimeout
		o.maxLifetime = maxLifetime
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates a new Neo4j client. The driver connects lazily; use
// VerifyConnectivity to check the server is reachable.
func NewClient(uri, user, pass string, opts ...Option) (*Client, error) {
	o := buildOptions(opts)

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, pass, ""), func(c *neo4j.Config) {
		if o.maxPoolSize > 0 {
			c.MaxConnectionPoolSize = o.maxPoolSize
		}
		if o.acquisitionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = o.acquisitionTimeout
		}
		if o.maxLifetime > 0 {
			c.MaxConnectionLifetime = o.maxLifetime
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}

	return &Client{
		Driver: driver,
		runner: &driverRunner{driver: driver, database: o.database},
		logger: o.logger,
	}, nil
}

// NewClientWithRunner wraps an existing Runner. The returned client has no driver.
func NewClientWithRunner(r Runner, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{runner: r, logger: o.logger}
}

// Close gracefully shuts down the driver.
func (c *Client) Close(ctx context.Context) error {
	if c.Driver == nil {
		return nil
	}
	return c.Driver.Close(ctx)
}

// VerifyConnectivity checks if a connection can be established with the database.
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	if c.Driver == nil {
		return nil
	}
	if err := c.Driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", resultset.ErrBackendUnavailable, err)
	}
	return nil
}

// Execute runs a Cypher query and returns its records as a keys/data payload.
func (c *Client) Execute(ctx context.Context, query string) (*resultset.RawResult, error) {
	return c.Query(ctx, query, nil)
}

// Query runs a parameterised Cypher query.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) (*resultset.RawResult, error) {
	result, err := c.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	raw := &resultset.RawResult{
		Keys: result.Keys,
		Data: make([]map[string]any, 0, len(result.Records)),
	}
	for _, record := range result.Records {
		row := make(map[string]any, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = convertValue(record.Values[i])
		}
		raw.Data = append(raw.Data, row)
	}

	c.logger.Debug("cypher query executed", zap.Int("records", len(raw.Data)))
	return raw, nil
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, r.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(r.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		if neo4j.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: %v", resultset.ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}
