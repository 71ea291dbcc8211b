package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"d3fend-graphx/internal/builder"
	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/resultset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	raw   *resultset.RawResult
	err   error
	query string
	delay time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, query string) (*resultset.RawResult, error) {
	f.query = query
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.raw, f.err
}

type fakeExpander struct {
	rows []resultset.Row
}

func (f *fakeExpander) Expand(_ context.Context, id, rel string, limit int) ([]resultset.Row, error) {
	return f.rows, nil
}

const testCatalog = `
domains:
  - name: cwe
    queries:
      - id: R1
        name: ChildOf
        sparql: SELECT ?sourceId ?sourceName ?targetId ?targetName WHERE {}
        cypher: MATCH (c)-[:CHILD_OF]->(p) RETURN c.id AS sourceId
      - id: C1
        name: Cypher only
        cypher: MATCH (n) RETURN n
`

func newPipeline(t *testing.T, execs map[resultset.Backend]Executor) *Pipeline {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return &Pipeline{
		Catalog:   cat,
		Executors: execs,
		Builder:   builder.DefaultConfig(),
		Metrics:   metrics.New(),
		Logger:    zaptest.NewLogger(t),
	}
}

func sparqlChildOf() *resultset.RawResult {
	return &resultset.RawResult{
		Head: &resultset.Head{Vars: []string{"sourceId", "sourceName", "targetId", "targetName"}},
		Results: &resultset.Results{Bindings: []map[string]resultset.Binding{{
			"sourceId":   {Type: "uri", Value: "http://cwe.mitre.org/data/definitions/CWE-89"},
			"sourceName": {Type: "literal", Value: "SQL Injection"},
			"targetId":   {Type: "uri", Value: "http://cwe.mitre.org/data/definitions/CWE-943"},
			"targetName": {Type: "literal", Value: "Improper Neutralization of Special Elements in Data Query Logic"},
		}}},
	}
}

func TestRun(t *testing.T) {
	exec := &fakeExecutor{raw: sparqlChildOf()}
	p := newPipeline(t, map[resultset.Backend]Executor{resultset.GraphDB: exec})

	res, err := p.Run(context.Background(), Request{Domain: "CWE", QueryID: "R1", Backend: resultset.GraphDB})
	require.NoError(t, err)

	assert.Contains(t, exec.query, "SELECT ?sourceId")
	assert.Equal(t, "CWE", res.Domain)
	assert.Equal(t, "R1", res.QueryID)
	assert.Equal(t, resultset.GraphDB, res.Backend)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, []string{"sourceId", "sourceName", "targetId", "targetName"}, res.Table.Columns)
	require.Len(t, res.Graph.Nodes, 2)
	require.Len(t, res.Graph.Edges, 1)
	assert.Equal(t, "CWE-89", res.Graph.Edges[0].Source)
	assert.Equal(t, builder.ChildOfRelation, res.Graph.Edges[0].Relation)
	assert.Equal(t, 2, res.Stats.TotalNodes)
	assert.Equal(t, 1, res.Stats.TotalEdges)
}

func TestRunErrors(t *testing.T) {
	t.Run("unknown domain", func(t *testing.T) {
		p := newPipeline(t, nil)
		_, err := p.Run(context.Background(), Request{Domain: "owasp", QueryID: "R1", Backend: resultset.Neo4j})
		assert.ErrorIs(t, err, catalog.ErrDomainNotFound)
	})

	t.Run("query without text for backend", func(t *testing.T) {
		p := newPipeline(t, nil)
		_, err := p.Run(context.Background(), Request{Domain: "cwe", QueryID: "C1", Backend: resultset.GraphDB})
		assert.ErrorIs(t, err, catalog.ErrNoQueryText)
	})

	t.Run("backend not configured", func(t *testing.T) {
		p := newPipeline(t, map[resultset.Backend]Executor{})
		_, err := p.Run(context.Background(), Request{Domain: "cwe", QueryID: "C1", Backend: resultset.Neo4j})
		assert.ErrorIs(t, err, resultset.ErrBackendUnavailable)
		assert.False(t, p.Configured(resultset.Neo4j))
	})

	t.Run("executor failure is wrapped", func(t *testing.T) {
		boom := errors.New("syntax error")
		p := newPipeline(t, map[resultset.Backend]Executor{resultset.Neo4j: &fakeExecutor{err: boom}})
		_, err := p.Run(context.Background(), Request{Domain: "cwe", QueryID: "C1", Backend: resultset.Neo4j})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "cwe/C1")
	})

	t.Run("timeout bounds the backend call", func(t *testing.T) {
		p := newPipeline(t, map[resultset.Backend]Executor{resultset.Neo4j: &fakeExecutor{delay: time.Second}})
		p.Timeout = 20 * time.Millisecond
		_, err := p.RunText(context.Background(), resultset.Neo4j, "RETURN 1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRunTextNeo4j(t *testing.T) {
	raw := &resultset.RawResult{
		Keys: []string{"framework", "id", "label"},
		Data: []map[string]any{
			{"framework": "CWE", "id": "CWE-89", "label": "SQL Injection"},
			{"framework": "ATT&CK", "id": "T1190", "label": "Exploit Public-Facing Application"},
		},
	}
	p := newPipeline(t, map[resultset.Backend]Executor{resultset.Neo4j: &fakeExecutor{raw: raw}})

	res, err := p.RunText(context.Background(), resultset.Neo4j, "MATCH (n) RETURN n")
	require.NoError(t, err)

	assert.Equal(t, 2, res.RowCount)
	assert.Same(t, raw, res.Raw)
	require.Len(t, res.Graph.Nodes, 2)
	assert.Equal(t, "ATTACK", res.Graph.Nodes[1].Framework)
}

func TestPresentEmpty(t *testing.T) {
	p := newPipeline(t, nil)
	res := p.Present(resultset.GraphDB, resultset.Normalize(resultset.GraphDB, &resultset.RawResult{}))

	assert.Equal(t, 0, res.RowCount)
	assert.Empty(t, res.Table.Columns)
	assert.Empty(t, res.Graph.Nodes)
}

func TestExpand(t *testing.T) {
	p := newPipeline(t, nil)

	_, err := p.Expand(context.Background(), "CWE-89", "", 10)
	assert.ErrorIs(t, err, resultset.ErrBackendUnavailable)

	p.Expander = &fakeExpander{rows: []resultset.Row{
		resultset.NewRow(nil, map[string]string{
			"sourceId": "CWE-89", "sourceName": "SQL Injection",
			"targetId": "CWE-943", "targetName": "Data Query Logic", "relType": "CHILD_OF",
		}),
	}}
	g, err := p.Expand(context.Background(), "CWE-89", "", 10)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Neo4j.Password = ""

	p, closeFn, err := Open(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer closeFn(context.Background())

	assert.True(t, p.Configured(resultset.GraphDB))
	assert.False(t, p.Configured(resultset.Neo4j))
	assert.Nil(t, p.Expander)
	assert.Contains(t, p.Catalog.Domains(), "d3fend")

	t.Run("bad catalog path", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Catalog = t.TempDir() + "/missing.yaml"
		_, _, err := Open(cfg, nil, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}
