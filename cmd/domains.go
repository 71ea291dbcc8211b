package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/catalog"
	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/resultset"
	"d3fend-graphx/internal/table"
)

var domainsCmd = &cobra.Command{
	Use:   "domains [domain]",
	Short: "List catalog domains or the queries of one domain",
	Long: `Without arguments, list the domains of the canned-query catalog. With a
domain name, list its queries.

Examples:
  d3fend-graphx domains
  d3fend-graphx domains cwe`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDomains,
}

func runDomains(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, d := range cat.Domains() {
			fmt.Fprintln(out, d)
		}
		return nil
	}

	summaries, err := cat.Queries(args[0])
	if err != nil {
		return err
	}
	keys := []string{"id", "name", "group"}
	rows := make([]resultset.Row, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, resultset.NewRow(keys, map[string]string{"id": s.ID, "name": s.Name, "group": s.Group}))
	}
	return table.ToTable(rows).Write(out)
}

func init() {
	rootCmd.AddCommand(domainsCmd)
}
