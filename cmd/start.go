package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/docker"
)

var startCmd = &cobra.Command{
	Use:   "start [neo4j|graphdb|all]",
	Short: "Start Neo4j and GraphDB in Docker",
	Long: `Start the Neo4j and GraphDB containers using Docker with the configuration
from the .d3fend-graphx.yaml file. The neo4j-data and graphdb-data directories
are mounted as volumes for data persistence.

This command will:
  - Pull the images if not already downloaded
  - Start the containers in the background
  - Use the Neo4j credentials from the configuration file
  - Mount the data directories as volumes

Examples:
  d3fend-graphx start
  d3fend-graphx start neo4j`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"neo4j", "graphdb", "all"},
	RunE:      runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	which := ""
	if len(args) == 1 {
		which = args[0]
	}
	services, err := docker.Select(docker.Services(cfg, "."), which)
	if err != nil {
		return err
	}
	for _, s := range services {
		if s.Name == docker.Neo4jContainer && cfg.Neo4j.Password == "" {
			return fmt.Errorf("neo4j password is not set; run 'd3fend-graphx init' first")
		}
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	return docker.Start(context.Background(), cli, services, cmd.OutOrStdout())
}

func init() {
	rootCmd.AddCommand(startCmd)
}
