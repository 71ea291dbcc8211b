package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/logging"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:   "d3fend-graphx [command]",
	Short: "Explore cyber-threat knowledge graphs",
	Long: `d3fend-graphx runs canned and ad-hoc queries against D3FEND, ATT&CK, CWE,
CAPEC and ATLAS knowledge graphs held in GraphDB (SPARQL) or Neo4j (Cypher),
and presents the results as tables and node-link graphs.

It can be used from the command line or run as a REST API with 'serve'.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("graphdb-url", "http://localhost:7200", "Base URL of the GraphDB server")
	f.String("graphdb-repo", "d3fend", "GraphDB repository id")
	f.String("neo4j-uri", "bolt://localhost:7687", "URI for the Neo4j database")
	f.String("neo4j-user", "neo4j", "Username for the Neo4j database")
	f.String("neo4j-pass", "", "Password for the Neo4j database")
	f.String("catalog", "", "Path to a canned-query catalog replacing the built-in one")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.Duration("timeout", 0, "Timeout for each backend query (e.g. 30s)")
}

// newLogger builds the logger for a command. One-shot commands only log
// warnings unless --log-level is given.
func newLogger(cmd *cobra.Command, cfg *config.Config, oneShot bool) (*zap.Logger, error) {
	level := cfg.Log.Level
	if oneShot && !cmd.Flags().Changed("log-level") {
		level = "warn"
	}
	return logging.New(level)
}

// openPipeline loads configuration and wires the query pipeline. The returned
// cleanup releases backend connections and flushes the logger.
func openPipeline(cmd *cobra.Command, m *metrics.Metrics, oneShot bool) (*runner.Pipeline, *config.Config, *zap.Logger, func(), error) {
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger, err := newLogger(cmd, cfg, oneShot)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	p, closeBackends, err := runner.Open(cfg, m, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if err := closeBackends(context.Background()); err != nil {
			logger.Warn("failed to close backends", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return p, cfg, logger, cleanup, nil
}
