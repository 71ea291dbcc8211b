package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/formatter"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/runner"
)

var queryCmd = &cobra.Command{
	Use:   "query <domain> <query-id>",
	Short: "Run a canned query and print the result",
	Long: `Run a canned query from the catalog against GraphDB or Neo4j.

The result is printed as a table by default. The json format prints the full
result (table and graph), while cypher and dot render the graph alone.

Examples:
  # Tactics and the D3FEND techniques countering them
  d3fend-graphx query d3fend Q3

  # CWE child-of hierarchy from Neo4j as Graphviz
  d3fend-graphx query cwe R1_cwe_child_of --backend neo4j --format dot > cwe.dot

  # Most connected CWE weaknesses and the path between two of them
  d3fend-graphx query cwe R1_cwe_child_of --central 5 --path CWE-89,CWE-707

  # Ad-hoc query text
  d3fend-graphx query --backend neo4j --text "MATCH (n:CWE) RETURN n.id AS id, n.name AS name LIMIT 5"`,
	Args: func(cmd *cobra.Command, args []string) error {
		if text, _ := cmd.Flags().GetString("text"); text != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	backendName, _ := cmd.Flags().GetString("backend")
	backend, err := resultset.ParseBackend(backendName)
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	format, err := formatter.ParseFormat(formatName)
	if err != nil {
		return err
	}

	p, _, _, cleanup, err := openPipeline(cmd, nil, true)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	var res *runner.Result
	if text, _ := cmd.Flags().GetString("text"); text != "" {
		res, err = p.RunText(ctx, backend, text)
	} else {
		res, err = p.Run(ctx, runner.Request{Domain: args[0], QueryID: args[1], Backend: backend})
	}
	if err != nil {
		return err
	}

	var out string
	if format == formatter.FormatJSON {
		out, err = formatter.ToJSON(res)
	} else {
		out, err = formatter.Render(format, res.Graph, res.Table)
	}
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}

	// Summaries go to stderr unless the output is the human-readable table.
	var summary io.Writer = os.Stderr
	if format == formatter.FormatTable {
		summary = cmd.OutOrStdout()
		fmt.Fprintf(os.Stderr, "\n%d rows, %d nodes, %d edges in %dms\n",
			res.RowCount, res.Stats.TotalNodes, res.Stats.TotalEdges, res.ElapsedMs)
	}
	if opts := queryAnalysis(cmd); !opts.empty() {
		return writeAnalysis(summary, res.Graph, opts)
	}
	return nil
}

func queryAnalysis(cmd *cobra.Command) analysisOptions {
	var o analysisOptions
	o.central, _ = cmd.Flags().GetInt("central")
	o.search, _ = cmd.Flags().GetString("search")
	o.path, _ = cmd.Flags().GetString("path")
	return o
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().String("backend", "graphdb", "Backend to query (graphdb, neo4j)")
	queryCmd.Flags().String("format", "table", "Output format (table, json, cypher, dot)")
	queryCmd.Flags().String("text", "", "Run this query text instead of a canned query")
	queryCmd.Flags().Int("central", 0, "Also list the N most connected nodes")
	queryCmd.Flags().String("search", "", "Also list nodes whose id or label contains this term")
	queryCmd.Flags().String("path", "", "Also print the shortest path between two node ids (FROM,TO)")
}
