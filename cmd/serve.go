package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/metrics"
	"d3fend-graphx/internal/rag"
	"d3fend-graphx/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API",
	Long: `Run the d3fend-graphx REST API.

The server proxies queries to GraphDB and Neo4j, runs canned queries through the
presentation pipeline, answers questions with the RAG engine and exposes
Prometheus metrics on /metrics. It shuts down gracefully on SIGINT or SIGTERM.

Example:
  d3fend-graphx serve --addr :3000`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	m := metrics.New()
	p, cfg, logger, cleanup, err := openPipeline(cmd, m, false)
	if err != nil {
		return err
	}
	defer cleanup()

	for b := range p.Executors {
		logger.Info("backend configured", zap.String("backend", string(b)))
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr
	srvCfg.CORSOrigin = cfg.Server.CORSOrigin
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	if cfg.RAG.Timeout > srvCfg.WriteTimeout {
		srvCfg.WriteTimeout = cfg.RAG.Timeout + cfg.Server.QueryTimeout
	}

	srv, err := server.NewServer(p, newAsker(cfg, logger), m, logger, srvCfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

// newAsker returns the RAG client, or nil when no engine command is configured.
func newAsker(cfg *config.Config, logger *zap.Logger) server.Asker {
	command := cfg.RAG.Args()
	if len(command) == 0 {
		return nil
	}
	return &rag.Client{
		Command: command,
		Backend: cfg.RAG.Backend,
		Model:   cfg.RAG.Model,
		TopK:    cfg.RAG.TopK,
		Timeout: cfg.RAG.Timeout,
		Logger:  logger,
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":3000", "Address the API listens on")
	serveCmd.Flags().String("rag-backend", "ollama", "Language model provider for the RAG engine (ollama, openai)")
	serveCmd.Flags().Int("top-k", 10, "Number of knowledge-graph entries retrieved per question")
}
