package neo4j

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	labelsKey = "_labels"
	typeKey   = "_type"
)

// convertValue turns driver values into JSON-friendly Go values. Nodes become
// their properties plus _labels, relationships their properties plus _type.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case neo4j.Node:
		props := convertMap(val.Props)
		props[labelsKey] = append([]string(nil), val.Labels...)
		return props
	case neo4j.Relationship:
		props := convertMap(val.Props)
		props[typeKey] = val.Type
		return props
	case neo4j.Path:
		nodes := make([]any, len(val.Nodes))
		for i, n := range val.Nodes {
			nodes[i] = convertValue(n)
		}
		rels := make([]any, len(val.Relationships))
		for i, r := range val.Relationships {
			rels[i] = convertValue(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertValue(item)
		}
		return out
	case map[string]any:
		return convertMap(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case time.Duration:
		return val.String()
	case fmt.Stringer:
		// dates, local times, durations and points
		return val.String()
	default:
		return v
	}
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = convertValue(v)
	}
	return out
}

// propString reads a property as a string. RDF imports store literals as
// single-element lists, so the first element of a list is used.
func propString(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		return fmt.Sprint(v[0])
	default:
		return fmt.Sprint(v)
	}
}
