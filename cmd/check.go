package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/neo4j"
	"d3fend-graphx/internal/sparql"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate d3fend-graphx configuration and connections",
	Long:  `Validate d3fend-graphx configuration and verify backend connections.`,
}

var checkDatabaseCmd = &cobra.Command{
	Use:     "database",
	Aliases: []string{"neo4j"},
	Short:   "Check Neo4j database connectivity",
	Long: `Verify that d3fend-graphx can connect to the Neo4j database using
the credentials from the configuration file (.d3fend-graphx.yaml).

This command will:
  1. Load the configuration from .d3fend-graphx.yaml
  2. Attempt to connect to the Neo4j database
  3. Verify connectivity
  4. Report the connection status

Example:
  d3fend-graphx check database`,
	RunE: runCheckDatabase,
}

var checkGraphDBCmd = &cobra.Command{
	Use:   "graphdb",
	Short: "Check GraphDB connectivity and repository",
	Long: `Verify that the GraphDB server answers and that the configured
repository exists.

Example:
  d3fend-graphx check graphdb --graphdb-repo d3fend`,
	RunE: runCheckGraphDB,
}

func loadChecked(cmd *cobra.Command) (*config.Config, error) {
	log.Println("Loading configuration from .d3fend-graphx.yaml...")
	cfg, err := config.LoadAndMerge(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !config.Exists() {
		fmt.Println("⚠ Warning: No configuration file found.")
		fmt.Println("  Run 'd3fend-graphx init' to create one.")
		fmt.Println("  Using default values...")
		fmt.Println()
	}
	return cfg, nil
}

func runCheckDatabase(cmd *cobra.Command, args []string) error {
	cfg, err := loadChecked(cmd)
	if err != nil {
		return err
	}

	// Display connection info (without password)
	fmt.Println("Neo4j Connection Settings:")
	fmt.Printf("  URI:      %s\n", cfg.Neo4j.URI)
	fmt.Printf("  User:     %s\n", cfg.Neo4j.User)
	fmt.Printf("  Database: %s\n", cfg.Neo4j.Database)
	fmt.Println()

	if err := cfg.Neo4j.Validate(); err != nil {
		return err
	}

	log.Printf("Connecting to Neo4j at %s...", cfg.Neo4j.URI)
	ctx := context.Background()

	client, err := neo4j.NewClient(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password,
		neo4j.WithDatabase(cfg.Neo4j.Database))
	if err != nil {
		return fmt.Errorf("failed to create neo4j client: %w", err)
	}
	defer client.Close(ctx)

	log.Println("Verifying connectivity...")
	if err := client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Successfully connected to Neo4j database!")
	fmt.Println("  The database is ready to use.")

	return nil
}

func runCheckGraphDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadChecked(cmd)
	if err != nil {
		return err
	}

	fmt.Println("GraphDB Connection Settings:")
	fmt.Printf("  URL:        %s\n", cfg.GraphDB.URL)
	fmt.Printf("  Repository: %s\n", cfg.GraphDB.Repository)
	fmt.Println()

	if !cfg.GraphDB.Configured() {
		return fmt.Errorf("graphdb-url and graphdb-repo are required")
	}

	client := sparql.NewClient(cfg.GraphDB.URL, cfg.GraphDB.Repository)
	log.Printf("Checking repository at %s...", client.Endpoint())
	if err := client.CheckRepository(context.Background()); err != nil {
		return fmt.Errorf("graphdb check failed: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Successfully connected to GraphDB!")
	fmt.Printf("  Repository %q is available.\n", cfg.GraphDB.Repository)

	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.AddCommand(checkDatabaseCmd)
	checkCmd.AddCommand(checkGraphDBCmd)
}
