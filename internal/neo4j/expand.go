package neo4j

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"

	"d3fend-graphx/internal/resultset"
)

// DefaultExpandLimit caps Expand when the caller passes no limit.
const DefaultExpandLimit = 50

const maxExpandLimit = 500

// ErrInvalidRelation is returned when a relationship type filter is not a
// plain Cypher identifier.
var ErrInvalidRelation = errors.New("invalid relationship type")

var relationPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// expansionKeys is the column order of the rows Expand produces.
var expansionKeys = []string{
	"sourceId", "sourceName", "sourceType", "sourceDesc",
	"targetId", "targetName", "targetType", "targetDesc",
	"relType",
}

// ExpandQuery builds the neighbourhood query for a node id, optionally
// restricted to one relationship type.
func ExpandQuery(id, rel string, limit int) (string, map[string]any, error) {
	if id == "" {
		return "", nil, errors.New("expand: empty node id")
	}
	if rel != "" && !relationPattern.MatchString(rel) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidRelation, rel)
	}
	switch {
	case limit <= 0:
		limit = DefaultExpandLimit
	case limit > maxExpandLimit:
		limit = maxExpandLimit
	}

	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", "").WithProperties(map[string]interface{}{"id": id})).
		Match(
			gocypher.NRef("n"),
			gocypher.R("r", rel).To(),
			gocypher.N("m", ""),
		).
		Return("n", "r", "m").
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("could not build expand query: %w", err)
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit), params, nil
}

// Expand returns the outgoing neighbourhood of a node as relationship rows
// (sourceId/sourceName/.../relType) ready for the graph builder.
func (c *Client) Expand(ctx context.Context, id, rel string, limit int) ([]resultset.Row, error) {
	query, params, err := ExpandQuery(id, rel, limit)
	if err != nil {
		return nil, err
	}

	result, err := c.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	rows := make([]resultset.Row, 0, len(result.Records))
	for _, record := range result.Records {
		values := make(map[string]string, len(expansionKeys))
		for i, key := range record.Keys {
			switch v := record.Values[i].(type) {
			case neo4j.Node:
				prefix := "source"
				if key == "m" {
					prefix = "target"
				}
				describeNode(values, prefix, v)
			case neo4j.Relationship:
				values["relType"] = relationType(v)
			}
		}
		rows = append(rows, resultset.NewRow(expansionKeys, values))
	}
	return rows, nil
}

func describeNode(values map[string]string, prefix string, n neo4j.Node) {
	id := propString(n.Props, "id")
	if id == "" {
		id = propString(n.Props, "uri")
	}
	if id == "" {
		id = n.ElementId
	}
	values[prefix+"Id"] = id

	name := propString(n.Props, "name")
	if name == "" {
		name = propString(n.Props, "label")
	}
	values[prefix+"Name"] = name
	values[prefix+"Type"] = frameworkLabel(n.Labels)
	if desc := propString(n.Props, "description"); desc != "" {
		values[prefix+"Desc"] = desc
	} else if def := propString(n.Props, "definition"); def != "" {
		values[prefix+"Desc"] = def
	}
}

// frameworkLabel picks the first label that is not the generic Resource label.
func frameworkLabel(labels []string) string {
	for _, l := range labels {
		if l != "Resource" {
			return l
		}
	}
	return ""
}

// relationType prefers the type property of generic RELATED edges.
func relationType(r neo4j.Relationship) string {
	if t := propString(r.Props, "type"); t != "" && r.Type == "RELATED" {
		return t
	}
	return r.Type
}
