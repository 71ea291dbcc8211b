package cmd

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"d3fend-graphx/internal/config"
	"d3fend-graphx/internal/docker"
	"d3fend-graphx/internal/git"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize d3fend-graphx configuration",
	Long: `Initialize d3fend-graphx configuration and settings.

Creates a .d3fend-graphx.yaml configuration file in the current directory
with default values and a randomly generated Neo4j password. Also creates the
neo4j-data and graphdb-data directories for Docker volume mounting.

The configuration file will be created with the following default values:
  - graphdb.url: http://localhost:7200
  - graphdb.repository: d3fend
  - neo4j.uri: bolt://localhost:7687
  - neo4j.user: neo4j
  - neo4j.password: (randomly generated)
  - server.addr: :3000

Example:
  d3fend-graphx init`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := config.ConfigFileName + "." + config.ConfigFileType

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	cfg := config.DefaultConfig()

	password, err := generateRandomPassword(16)
	if err != nil {
		return fmt.Errorf("failed to generate random password: %w", err)
	}
	cfg.Neo4j.Password = password

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	for _, dir := range []string{docker.Neo4jDataDir, docker.GraphDBDataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	fmt.Printf("✓ Created configuration file: %s\n\n", configPath)
	fmt.Println("Default configuration:")
	fmt.Printf("  graphdb.url: %s\n", cfg.GraphDB.URL)
	fmt.Printf("  graphdb.repository: %s\n", cfg.GraphDB.Repository)
	fmt.Printf("  neo4j.uri: %s\n", cfg.Neo4j.URI)
	fmt.Printf("  neo4j.user: %s\n", cfg.Neo4j.User)
	fmt.Printf("  neo4j.password: %s\n", cfg.Neo4j.Password)
	fmt.Printf("  server.addr: %s\n\n", cfg.Server.Addr)
	fmt.Printf("✓ Created data directories: %s, %s\n", docker.Neo4jDataDir, docker.GraphDBDataDir)

	entries := []string{configPath, docker.Neo4jDataDir + "/", docker.GraphDBDataDir + "/"}
	if !git.IsRepository(".") {
		fmt.Println("\nNote: Not inside a Git repository. If you initialize one later,")
		fmt.Printf("remember to add the following to your .gitignore: %v\n", entries)
		return nil
	}

	added, err := git.UpdateGitignore(".", entries)
	if err != nil {
		// A failed .gitignore update does not undo the init.
		fmt.Fprintf(os.Stderr, "Warning: failed to update .gitignore: %v\n", err)
		fmt.Printf("Please manually add %v to your .gitignore file.\n", entries)
		return nil
	}
	if len(added) > 0 {
		fmt.Printf("\n✓ Added the following entries to .gitignore: %v\n", added)
	} else {
		fmt.Println("\n✓ .gitignore already contains the necessary entries.")
	}
	fmt.Println("This prevents committing sensitive credentials and local database files.")

	return nil
}

// generateRandomPassword generates a random alphanumeric password of the specified length
func generateRandomPassword(length int) (string, error) {
	// Alphanumeric only, so the value is safe inside NEO4J_AUTH.
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	for i := range bytes {
		bytes[i] = charset[int(bytes[i])%len(charset)]
	}
	return string(bytes), nil
}

func init() {
	rootCmd.AddCommand(initCmd)
}
