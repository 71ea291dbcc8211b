package resultset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *RawResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	raw, err := Decode(data)
	require.NoError(t, err)
	return raw
}

func TestNormalizeGraphDB(t *testing.T) {
	rows := Normalize(GraphDB, loadFixture(t, "graphdb_counters.json"))

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"attackLabel", "defensiveLabel", "d3fID"}, rows[0].Keys())
	assert.Equal(t, "Brute Force", rows[0].Get("attackLabel"))
	assert.Equal(t, "Multi-factor Authentication", rows[0].Get("defensiveLabel"))
	assert.Equal(t, "D3-MFA", rows[0].Get("d3fID"))

	t.Run("optional variable left unbound is absent", func(t *testing.T) {
		_, ok := rows[1].Lookup("d3fID")
		assert.False(t, ok)
		assert.Equal(t, []string{"attackLabel", "defensiveLabel"}, rows[1].Keys())
	})
}

func TestNormalizeNeo4j(t *testing.T) {
	rows := Normalize(Neo4j, loadFixture(t, "neo4j_childof.json"))

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"sourceId", "sourceName", "targetId", "targetName", "relType", "depth"}, rows[0].Keys())
	assert.Equal(t, "1", rows[0].Get("depth"))
	assert.Equal(t, "2.5", rows[1].Get("depth"))

	t.Run("null keeps the column with an empty value", func(t *testing.T) {
		v, ok := rows[1].Lookup("targetName")
		assert.True(t, ok)
		assert.Empty(t, v)
		assert.False(t, rows[1].Has("targetName"))
	})
}

func TestNormalizeAbsentStructures(t *testing.T) {
	t.Run("nil payload", func(t *testing.T) {
		assert.Empty(t, Normalize(GraphDB, nil))
		assert.Empty(t, Normalize(Neo4j, nil))
	})

	t.Run("missing results", func(t *testing.T) {
		raw, err := Decode([]byte(`{"head":{"vars":["x"]}}`))
		require.NoError(t, err)
		rows := Normalize(GraphDB, raw)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("missing bindings", func(t *testing.T) {
		raw, err := Decode([]byte(`{"results":{}}`))
		require.NoError(t, err)
		assert.Empty(t, Normalize(GraphDB, raw))
	})

	t.Run("missing data", func(t *testing.T) {
		raw, err := Decode([]byte(`{}`))
		require.NoError(t, err)
		rows := Normalize(Neo4j, raw)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("shape mismatch yields nothing", func(t *testing.T) {
		raw := loadFixture(t, "graphdb_counters.json")
		assert.Empty(t, Normalize(Neo4j, raw))
	})
}

func TestNormalizeWithoutDeclaredOrder(t *testing.T) {
	raw := &RawResult{Data: []map[string]any{{"b": "2", "a": "1", "c": true}}}
	rows := Normalize(Neo4j, raw)

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0].Keys())
	assert.Equal(t, "true", rows[0].Get("c"))
}

func TestScalar(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"json number", json.Number("42"), "42"},
		{"float", 3.5, "3.5"},
		{"whole float", float64(7), "7"},
		{"int64", int64(-3), "-3"},
		{"bool", false, "false"},
		{"list", []any{"a", "b"}, `["a","b"]`},
		{"map", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Scalar(tt.in))
		})
	}
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"graphdb": GraphDB,
		"SPARQL":  GraphDB,
		"neo4j":   Neo4j,
		" cypher": Neo4j,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseBackend("mongodb")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRowJSONKeepsColumnOrder(t *testing.T) {
	row := NewRow([]string{"z", "a"}, map[string]string{"a": "1", "z": "2", "m": "3"})
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"2","a":"1","m":"3"}`, string(b))
}

func TestRowFirst(t *testing.T) {
	row := NewRow(nil, map[string]string{"techniqueLabel": "Harden", "defensiveLabel": ""})
	assert.Equal(t, "Harden", row.First("defensiveLabel", "techniqueLabel"))
	assert.Empty(t, row.First("attackLabel"))
}
