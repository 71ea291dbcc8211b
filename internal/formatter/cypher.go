package formatter

import (
	"fmt"
	"regexp"
	"strings"

	"d3fend-graphx/internal/graph"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quote renders s as a single-quoted Cypher string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}

// identifier renders s as a Cypher label or relationship type, backquoting
// names that are not plain identifiers.
func identifier(s string) string {
	if identifierPattern.MatchString(s) {
		return s
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// nodeLabel is the secondary label of a node: its framework, or its kind.
func nodeLabel(n graph.Node) string {
	if n.Framework != "" {
		return n.Framework
	}
	switch n.Kind {
	case graph.KindAttack:
		return "AttackTechnique"
	case graph.KindDefensive:
		return "DefensiveTechnique"
	case graph.KindTactic:
		return "Tactic"
	}
	return ""
}

// ToCypher converts a graph object to a series of idempotent Cypher MERGE statements.
func ToCypher(g *graph.Graph) (string, error) {
	var sb strings.Builder

	for _, node := range g.Nodes {
		sb.WriteString(fmt.Sprintf("MERGE (n:Resource {id: %s})\n", quote(node.ID)))
		sb.WriteString(fmt.Sprintf("SET n.name = %s, n.kind = %s", quote(node.Label), quote(string(node.Kind))))
		if node.Description != "" {
			sb.WriteString(fmt.Sprintf(", n.description = %s", quote(node.Description)))
		}
		if label := nodeLabel(node); label != "" {
			sb.WriteString(fmt.Sprintf(", n:%s", identifier(label)))
		}
		sb.WriteString(";\n")
	}

	sb.WriteString("\n")

	for _, edge := range g.Edges {
		sb.WriteString(fmt.Sprintf(
			"MATCH (from:Resource {id: %s}), (to:Resource {id: %s})\nMERGE (from)-[:%s]->(to);\n",
			quote(edge.Source),
			quote(edge.Target),
			identifier(edge.Relation),
		))
	}

	return sb.String(), nil
}
