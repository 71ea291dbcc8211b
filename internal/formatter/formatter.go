package formatter

import (
	"fmt"
	"strings"

	"d3fend-graphx/internal/graph"
	"d3fend-graphx/internal/table"
)

// Format names an output rendering.
type Format string

const (
	FormatTable  Format = "table"
	FormatJSON   Format = "json"
	FormatCypher Format = "cypher"
	FormatDOT    Format = "dot"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatTable, FormatJSON, FormatCypher, FormatDOT}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q (want one of table, json, cypher, dot)", s)
}

// Render renders the graph, or for FormatTable the table, in the given format.
func Render(f Format, g *graph.Graph, t table.Table) (string, error) {
	switch f {
	case FormatTable:
		var sb strings.Builder
		if err := t.Write(&sb); err != nil {
			return "", err
		}
		return sb.String(), nil
	case FormatJSON:
		return ToJSON(g)
	case FormatCypher:
		return ToCypher(g)
	case FormatDOT:
		return ToDOT(g)
	}
	return "", fmt.Errorf("unsupported format %q", f)
}
