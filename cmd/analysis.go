package cmd

import (
	"fmt"
	"io"
	"strings"

	"d3fend-graphx/internal/graph"
)

// analysisOptions selects the graph summaries printed after a query result.
type analysisOptions struct {
	central int
	search  string
	path    string
}

func (o analysisOptions) empty() bool {
	return o.central <= 0 && o.search == "" && o.path == ""
}

// writeAnalysis prints the requested summaries of g.
func writeAnalysis(w io.Writer, g *graph.Graph, o analysisOptions) error {
	if o.central > 0 {
		fmt.Fprintf(w, "\nMost connected nodes:\n")
		ranked := g.DegreeCentrality()
		if len(ranked) > o.central {
			ranked = ranked[:o.central]
		}
		for _, c := range ranked {
			fmt.Fprintf(w, "  %-24s degree %d (in %d, out %d)\n", c.ID, c.Degree, c.In, c.Out)
		}
	}

	if o.search != "" {
		matches := g.Search(o.search)
		fmt.Fprintf(w, "\nNodes matching %q: %d\n", o.search, len(matches))
		for _, n := range matches {
			fmt.Fprintf(w, "  %-24s %s\n", n.ID, n.Label)
		}
	}

	if o.path != "" {
		from, to, ok := strings.Cut(o.path, ",")
		if !ok {
			return fmt.Errorf("invalid --path %q, want FROM,TO", o.path)
		}
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		p := g.ShortestPath(from, to)
		if p == nil {
			fmt.Fprintf(w, "\nNo path between %s and %s\n", from, to)
		} else {
			fmt.Fprintf(w, "\nPath (%d hops): %s\n", len(p)-1, strings.Join(p, " - "))
		}
	}
	return nil
}
