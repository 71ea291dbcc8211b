package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"d3fend-graphx/internal/builder"
	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/graph"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/table"
)

// Executor runs query text on one backend.
type Executor interface {
	Execute(ctx context.Context, query string) (*resultset.RawResult, error)
}

// Expander returns the neighbourhood of a node as relationship rows.
type Expander interface {
	Expand(ctx context.Context, id, rel string, limit int) ([]resultset.Row, error)
}

// Pipeline turns a canned query selection into a table and a graph.
type Pipeline struct {
	Catalog   *catalog.Catalog
	Executors map[resultset.Backend]Executor
	Expander  Expander
	Builder   builder.Config
	// Timeout bounds each backend call; zero leaves the caller's context alone.
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Request selects a canned query and the backend to run it on.
type Request struct {
	Domain  string
	QueryID string
	Backend resultset.Backend
}

// Result is the presented outcome of one execution.
type Result struct {
	Domain    string            `json:"domain,omitempty"`
	QueryID   string            `json:"queryId,omitempty"`
	Backend   resultset.Backend `json:"backend"`
	RowCount  int               `json:"rowCount"`
	ElapsedMs int64             `json:"elapsedMs"`
	Table     table.Table       `json:"table"`
	Graph     *graph.Graph      `json:"graph"`
	Stats     graph.Stats       `json:"stats"`

	Raw  *resultset.RawResult `json:"-"`
	Rows []resultset.Row      `json:"-"`
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Executor returns the executor for backend, or an error when it is not configured.
func (p *Pipeline) Executor(backend resultset.Backend) (Executor, error) {
	exec, ok := p.Executors[backend]
	if !ok || exec == nil {
		return nil, fmt.Errorf("%w: %s is not configured", resultset.ErrBackendUnavailable, backend)
	}
	return exec, nil
}

// Configured reports whether backend has an executor.
func (p *Pipeline) Configured(backend resultset.Backend) bool {
	_, err := p.Executor(backend)
	return err == nil
}

// Run resolves the canned query and executes it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	q, err := p.Catalog.Query(req.Domain, req.QueryID)
	if err != nil {
		return nil, err
	}
	text, err := q.Text(req.Backend)
	if err != nil {
		return nil, err
	}

	res, err := p.RunText(ctx, req.Backend, text)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s/%s: %w", req.Domain, req.QueryID, err)
	}
	res.Domain = req.Domain
	res.QueryID = q.ID
	return res, nil
}

// Raw executes query text and returns the backend payload unchanged.
func (p *Pipeline) Raw(ctx context.Context, backend resultset.Backend, text string) (*resultset.RawResult, error) {
	exec, err := p.Executor(backend)
	if err != nil {
		return nil, err
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := exec.Execute(ctx, text)
	elapsed := time.Since(start)

	rows := 0
	if raw != nil {
		rows = len(raw.Data)
		if raw.Results != nil {
			rows = len(raw.Results.Bindings)
		}
	}
	p.Metrics.ObserveQuery(string(backend), elapsed, rows, err)
	if err != nil {
		p.logger().Warn("query failed", zap.String("backend", string(backend)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	p.logger().Info("query executed", zap.String("backend", string(backend)), zap.Int("rows", rows), zap.Duration("elapsed", elapsed))
	return raw, nil
}

// RunText executes query text and presents the result.
func (p *Pipeline) RunText(ctx context.Context, backend resultset.Backend, text string) (*Result, error) {
	start := time.Now()
	raw, err := p.Raw(ctx, backend, text)
	if err != nil {
		return nil, err
	}
	res := p.Present(backend, resultset.Normalize(backend, raw))
	res.Raw = raw
	res.ElapsedMs = time.Since(start).Milliseconds()
	return res, nil
}

// Present builds the table and graph for already-normalised rows.
func (p *Pipeline) Present(backend resultset.Backend, rows []resultset.Row) *Result {
	g := builder.Build(rows, p.Builder)
	p.Metrics.ObserveGraph(string(backend), len(g.Nodes), len(g.Diagnostics))
	for _, d := range g.Diagnostics {
		p.logger().Debug("row skipped", zap.Int("row", d.Row), zap.String("reason", d.Reason))
	}

	return &Result{
		Backend:  backend,
		RowCount: len(rows),
		Table:    table.ToTable(rows),
		Graph:    g,
		Stats:    g.Stats(),
		Rows:     rows,
	}
}

// Expand builds the neighbourhood graph of a node.
func (p *Pipeline) Expand(ctx context.Context, id, rel string, limit int) (*graph.Graph, error) {
	if p.Expander == nil {
		return nil, fmt.Errorf("%w: neo4j is not configured", resultset.ErrBackendUnavailable)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := p.Expander.Expand(ctx, id, rel, limit)
	p.Metrics.ObserveQuery(string(resultset.Neo4j), time.Since(start), len(rows), err)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", id, err)
	}
	return p.Present(resultset.Neo4j, rows).Graph, nil
}
