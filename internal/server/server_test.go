package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"d3fend-graphx/internal/builder"
	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/neo4j"
	"d3fend-graphx/internal/rag"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/runner"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, query string) (*resultset.RawResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resultset.RawResult), args.Error(1)
}

type MockExpander struct {
	mock.Mock
}

func (m *MockExpander) Expand(ctx context.Context, id, rel string, limit int) ([]resultset.Row, error) {
	args := m.Called(ctx, id, rel, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]resultset.Row), args.Error(1)
}

type MockAsker struct {
	mock.Mock
}

func (m *MockAsker) Ask(ctx context.Context, question string) (*rag.Answer, error) {
	args := m.Called(ctx, question)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rag.Answer), args.Error(1)
}

const testCatalog = `
domains:
  - name: cwe
    queries:
      - id: R1
        name: ChildOf
        group: relationships
        sparql: SELECT ?sourceId ?sourceName ?targetId ?targetName WHERE {}
      - id: C1
        name: Cypher only
        group: relationships
        cypher: MATCH (n) RETURN n.id AS id
`

type fixture struct {
	server   *Server
	graphdb  *MockExecutor
	neo4j    *MockExecutor
	expander *MockExpander
	asker    *MockAsker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	f := &fixture{
		graphdb:  &MockExecutor{},
		neo4j:    &MockExecutor{},
		expander: &MockExpander{},
		asker:    &MockAsker{},
	}
	logger := zaptest.NewLogger(t)
	m := metrics.New()
	p := &runner.Pipeline{
		Catalog: cat,
		Executors: map[resultset.Backend]runner.Executor{
			resultset.GraphDB: f.graphdb,
			resultset.Neo4j:   f.neo4j,
		},
		Expander: f.expander,
		Builder:  builder.DefaultConfig(),
		Metrics:  m,
		Logger:   logger,
	}
	f.server, err = NewServer(p, f.asker, m, logger, DefaultConfig())
	require.NoError(t, err)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil, nil, zaptest.NewLogger(t), DefaultConfig())
	assert.Error(t, err)

	_, err = NewServer(&runner.Pipeline{}, nil, nil, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"graphdb": true, "neo4j": true}, body["backends"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("domains", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/domains", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `["cwe"]`, w.Body.String())
	})

	t.Run("queries are looked up case-insensitively", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/domains/CWE/queries", "")
		assert.Equal(t, http.StatusOK, w.Code)
		var summaries []catalog.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "R1", summaries[0].ID)
	})

	t.Run("unknown domain", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/domains/nope/queries", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Domain not found", decodeBody(t, w)["error"])
	})

	t.Run("single query", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/domains/cwe/queries/C1", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Cypher only", decodeBody(t, w)["name"])
	})

	t.Run("unknown query", func(t *testing.T) {
		w := f.do(http.MethodGet, "/api/domains/cwe/queries/Q99", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Query not found", decodeBody(t, w)["error"])
	})
}

func TestRawQuery(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/graphdb/query", `{"query":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Missing query parameter", decodeBody(t, w)["error"])
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/neo4j/query", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("graphdb payload is passed through", func(t *testing.T) {
		f := newFixture(t)
		raw := &resultset.RawResult{
			Head:    &resultset.Head{Vars: []string{"x"}},
			Results: &resultset.Results{Bindings: []map[string]resultset.Binding{{"x": {Type: "literal", Value: "1"}}}},
		}
		f.graphdb.On("Execute", mock.Anything, "SELECT ?x WHERE {}").Return(raw, nil)

		w := f.do(http.MethodPost, "/api/graphdb/query", `{"query":"SELECT ?x WHERE {}"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"head":{"vars":["x"]},"results":{"bindings":[{"x":{"type":"literal","value":"1"}}]}}`, w.Body.String())
		f.graphdb.AssertExpectations(t)
	})

	t.Run("empty neo4j result keeps data", func(t *testing.T) {
		f := newFixture(t)
		f.neo4j.On("Execute", mock.Anything, "MATCH (n) RETURN n").Return(&resultset.RawResult{}, nil)

		w := f.do(http.MethodPost, "/api/neo4j/query", `{"query":"MATCH (n) RETURN n"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"keys":[],"data":[]}`, w.Body.String())
	})

	t.Run("backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.neo4j.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		w := f.do(http.MethodPost, "/api/neo4j/query", `{"query":"MATCH (n) RETURN n"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Failed to connect to Neo4j", body["error"])
		assert.Equal(t, "connection refused", body["details"])
	})
}

func TestRun(t *testing.T) {
	t.Run("defaults to graphdb", func(t *testing.T) {
		f := newFixture(t)
		raw := &resultset.RawResult{
			Head: &resultset.Head{Vars: []string{"sourceId", "sourceName", "targetId", "targetName"}},
			Results: &resultset.Results{Bindings: []map[string]resultset.Binding{{
				"sourceId":   {Type: "uri", Value: "http://cwe.mitre.org/data/definitions/CWE-89"},
				"sourceName": {Type: "literal", Value: "SQL Injection"},
				"targetId":   {Type: "uri", Value: "http://cwe.mitre.org/data/definitions/CWE-20"},
				"targetName": {Type: "literal", Value: "Improper Input Validation"},
			}}},
		}
		f.graphdb.On("Execute", mock.Anything, mock.Anything).Return(raw, nil)

		w := f.do(http.MethodPost, "/api/domains/cwe/queries/R1/run", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "graphdb", body["backend"])
		assert.EqualValues(t, 1, body["rowCount"])
		graph := body["graph"].(map[string]interface{})
		assert.Len(t, graph["nodes"], 2)
		assert.Len(t, graph["edges"], 1)
	})

	t.Run("no text for backend", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/domains/cwe/queries/C1/run?backend=graphdb", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.graphdb.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("unknown backend", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/domains/cwe/queries/R1/run?backend=oracle", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Unknown backend", decodeBody(t, w)["error"])
	})

	t.Run("unavailable backend", func(t *testing.T) {
		f := newFixture(t)
		f.neo4j.On("Execute", mock.Anything, mock.Anything).
			Return(nil, errors.Join(resultset.ErrBackendUnavailable, errors.New("dial tcp")))
		w := f.do(http.MethodPost, "/api/domains/cwe/queries/C1/run?backend=neo4j", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestExpand(t *testing.T) {
	f := newFixture(t)
	rows := []resultset.Row{resultset.NewRow(
		[]string{"sourceId", "sourceName", "targetId", "targetName", "relType"},
		map[string]string{
			"sourceId":   "CWE-89",
			"sourceName": "SQL Injection",
			"targetId":   "CWE-20",
			"targetName": "Improper Input Validation",
			"relType":    "CHILD_OF",
		},
	)}
	f.expander.On("Expand", mock.Anything, "CWE-89", "CHILD_OF", 10).Return(rows, nil)

	w := f.do(http.MethodGet, "/api/neo4j/nodes/CWE-89/expand?rel=CHILD_OF&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["nodes"], 2)
	f.expander.AssertExpectations(t)

	w = f.do(http.MethodGet, "/api/neo4j/nodes/CWE-89/expand?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.expander.On("Expand", mock.Anything, "CWE-89", "CHILD OF", 0).
		Return(nil, fmt.Errorf("%w: %q", neo4j.ErrInvalidRelation, "CHILD OF"))
	w = f.do(http.MethodGet, "/api/neo4j/nodes/CWE-89/expand?rel=CHILD%20OF", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid relationship type", decodeBody(t, w)["error"])
}

func TestAsk(t *testing.T) {
	t.Run("answer with graph", func(t *testing.T) {
		f := newFixture(t)
		f.asker.On("Ask", mock.Anything, "What counters phishing?").Return(&rag.Answer{
			Answer: "Sender reputation analysis.",
			Sources: []rag.Source{
				{ID: "D3-SRA", Name: "Sender Reputation Analysis", Labels: []string{"Resource", "D3FEND"}, Similarity: 0.91},
			},
		}, nil)

		w := f.do(http.MethodPost, "/api/ask", `{"question":"What counters phishing?"}`)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "Sender reputation analysis.", body["answer"])
		assert.Len(t, body["sources"], 1)
		graph := body["graph"].(map[string]interface{})
		assert.Len(t, graph["nodes"], 1)
	})

	t.Run("empty question", func(t *testing.T) {
		f := newFixture(t)
		f.asker.On("Ask", mock.Anything, "").Return(nil, rag.ErrEmptyQuestion)

		w := f.do(http.MethodPost, "/api/ask", `{"question":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodOptions, "/api/graphdb/query", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(http.MethodGet, "/api/domains", "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	f := newFixture(t)
	h := f.server.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, w)["error"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{catalog.ErrDomainNotFound, http.StatusNotFound},
		{catalog.ErrQueryNotFound, http.StatusNotFound},
		{catalog.ErrNoQueryText, http.StatusBadRequest},
		{resultset.ErrUnknownBackend, http.StatusBadRequest},
		{rag.ErrEmptyQuestion, http.StatusBadRequest},
		{fmt.Errorf("failed to expand CWE-89: %w", neo4j.ErrInvalidRelation), http.StatusBadRequest},
		{resultset.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{errors.New("syntax error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
