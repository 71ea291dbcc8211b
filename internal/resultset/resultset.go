// Package resultset converts the two backend wire shapes (SPARQL JSON results and
// Cypher row objects) into a uniform, ordered sequence of string rows.
package resultset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Backend identifies which query backend produced a payload.
type Backend string

const (
	// GraphDB is the SPARQL triple store returning nested variable bindings.
	GraphDB Backend = "graphdb"
	// Neo4j is the property graph returning flat row objects.
	Neo4j Backend = "neo4j"
)

var (
	// ErrUnknownBackend is returned by ParseBackend for unsupported names.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrBackendUnavailable marks failures to reach a backend at all, as opposed
	// to a backend rejecting a query.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Backends lists the supported backends in display order.
func Backends() []Backend {
	return []Backend{GraphDB, Neo4j}
}

// ParseBackend resolves a user-supplied backend name. "sparql" and "cypher" are
// accepted as aliases.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "graphdb", "sparql":
		return GraphDB, nil
	case "neo4j", "cypher":
		return Neo4j, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Binding is a single SPARQL variable binding. Only Value is kept by Normalize.
type Binding struct {
	Type     string `json:"type,omitempty"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Head carries the ordered SPARQL projection variables.
type Head struct {
	Vars []string `json:"vars"`
}

// Results wraps the SPARQL bindings sequence.
type Results struct {
	Bindings []map[string]Binding `json:"bindings"`
}

// RawResult is the union of both wire shapes. A SPARQL payload fills Head and
// Results, a Cypher payload fills Keys and Data.
type RawResult struct {
	Head    *Head            `json:"head,omitempty"`
	Results *Results         `json:"results,omitempty"`
	Keys    []string         `json:"keys,omitempty"`
	Data    []map[string]any `json:"data,omitempty"`
}

// Decode parses a payload of either shape. Numbers are kept exact.
func Decode(data []byte) (*RawResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw RawResult
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode query result: %w", err)
	}
	return &raw, nil
}

// Normalize converts raw into rows. Absent structures yield an empty slice,
// never an error.
func Normalize(backend Backend, raw *RawResult) []Row {
	rows := make([]Row, 0)
	if raw == nil {
		return rows
	}

	switch backend {
	case GraphDB:
		if raw.Results == nil {
			return rows
		}
		var vars []string
		if raw.Head != nil {
			vars = raw.Head.Vars
		}
		for _, b := range raw.Results.Bindings {
			values := make(map[string]string, len(b))
			for name, binding := range b {
				values[name] = binding.Value
			}
			rows = append(rows, NewRow(vars, values))
		}
	case Neo4j:
		for _, obj := range raw.Data {
			values := make(map[string]string, len(obj))
			for name, v := range obj {
				values[name] = Scalar(v)
			}
			rows = append(rows, NewRow(raw.Keys, values))
		}
	}

	return rows
}

// Scalar renders a decoded JSON or driver value as a string. Lists and maps are
// rendered as compact JSON.
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case fmt.Stringer:
		return val.String()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
