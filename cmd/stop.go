package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/docker"
)

var stopCmd = &cobra.Command{
	Use:   "stop [neo4j|graphdb|all]",
	Short: "Stop and remove the Docker containers",
	Long: `Stop and remove the containers started with 'd3fend-graphx start'.

This command will:
  - Stop the running containers
  - Remove the containers
  - Preserve the data in the neo4j-data and graphdb-data directories

Example:
  d3fend-graphx stop`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"neo4j", "graphdb", "all"},
	RunE:      runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	which := ""
	if len(args) == 1 {
		which = args[0]
	}
	services, err := docker.Select(docker.Services(config.DefaultConfig(), "."), which)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	out := cmd.OutOrStdout()
	if err := docker.Stop(context.Background(), cli, names, out); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nNote: Data has been preserved in the %s and %s directories\n", docker.Neo4jDataDir, docker.GraphDBDataDir)
	return nil
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
