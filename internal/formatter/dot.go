package formatter

import (
	"fmt"
	"strings"

	"github.com/awalterschulze/gographviz"

	"d3fend-graphx/internal/graph"
)

const dotGraphName = "knowledge"

// dotQuote renders s as a double-quoted DOT ID.
func dotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// ToDOT converts a graph to Graphviz DOT, colouring nodes with their presentation colour.
func ToDOT(g *graph.Graph) (string, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(dotGraphName); err != nil {
		return "", err
	}
	if err := out.SetDir(true); err != nil {
		return "", err
	}
	if err := out.AddAttr(dotGraphName, "rankdir", "LR"); err != nil {
		return "", err
	}

	for _, n := range g.Nodes {
		attrs := map[string]string{
			"label": dotQuote(n.Label),
			"style": "filled",
		}
		if n.Color != "" {
			attrs["fillcolor"] = dotQuote(n.Color)
		}
		if n.Description != "" {
			attrs["tooltip"] = dotQuote(n.Description)
		}
		if err := out.AddNode(dotGraphName, dotQuote(n.ID), attrs); err != nil {
			return "", fmt.Errorf("failed to add node %s: %w", n.ID, err)
		}
	}

	for _, e := range g.Edges {
		attrs := map[string]string{"label": dotQuote(e.Relation)}
		if err := out.AddEdge(dotQuote(e.Source), dotQuote(e.Target), true, attrs); err != nil {
			return "", fmt.Errorf("failed to add edge %s: %w", e.ID, err)
		}
	}

	return out.String(), nil
}
