package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = ".d3fend-graphx"
	ConfigFileType = "yaml"
	EnvPrefix      = "D3FEND_GRAPHX"
)

// Config holds the configuration for d3fend-graphx.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GraphDB GraphDBConfig `mapstructure:"graphdb"`
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	RAG     RAGConfig     `mapstructure:"rag"`
	Log     LogConfig     `mapstructure:"log"`
	// Catalog is a canned-query file replacing the built-in catalog.
	Catalog string `mapstructure:"catalog"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// GraphDBConfig holds the SPARQL triple store settings.
type GraphDBConfig struct {
	URL         string `mapstructure:"url"`
	Repository  string `mapstructure:"repository"`
	DockerImage string `mapstructure:"docker_image"`
}

// Neo4jConfig holds the Neo4j connection settings.
type Neo4jConfig struct {
	URI         string `mapstructure:"uri"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	DockerImage string `mapstructure:"docker_image"`
}

// RAGConfig holds the question-answering engine settings.
type RAGConfig struct {
	Command string        `mapstructure:"command"`
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	TopK    int           `mapstructure:"top_k"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Args splits Command into program and arguments.
func (c RAGConfig) Args() []string {
	return strings.Fields(c.Command)
}

// Configured reports whether enough is set to open a Neo4j connection.
func (c Neo4jConfig) Configured() bool {
	return c.URI != "" && c.User != "" && c.Password != ""
}

// Validate reports missing Neo4j connection settings.
func (c Neo4jConfig) Validate() error {
	if !c.Configured() {
		return errors.New("neo4j-uri, neo4j-user, and neo4j-pass are required. Please configure them in .d3fend-graphx.yaml or pass them as flags")
	}
	return nil
}

// Configured reports whether a GraphDB endpoint is set.
func (c GraphDBConfig) Configured() bool {
	return c.URL != "" && c.Repository != ""
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			CORSOrigin:   "*",
			ReadTimeout:  15 * time.Second,
			QueryTimeout: 30 * time.Second,
		},
		GraphDB: GraphDBConfig{
			URL:         "http://localhost:7200",
			Repository:  "d3fend",
			DockerImage: "ontotext/graphdb:10.7.0",
		},
		Neo4j: Neo4jConfig{
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Password:    "",
			Database:    "neo4j",
			MaxPoolSize: 50,
			DockerImage: "neo4j:community",
		},
		RAG: RAGConfig{
			Command: "python3 rag/rag_engine.py",
			Backend: "ollama",
			TopK:    10,
			Timeout: 3 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.query_timeout", d.Server.QueryTimeout)
	v.SetDefault("graphdb.url", d.GraphDB.URL)
	v.SetDefault("graphdb.repository", d.GraphDB.Repository)
	v.SetDefault("graphdb.docker_image", d.GraphDB.DockerImage)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.user", d.Neo4j.User)
	v.SetDefault("neo4j.password", d.Neo4j.Password)
	v.SetDefault("neo4j.database", d.Neo4j.Database)
	v.SetDefault("neo4j.max_pool_size", d.Neo4j.MaxPoolSize)
	v.SetDefault("neo4j.docker_image", d.Neo4j.DockerImage)
	v.SetDefault("rag.command", d.RAG.Command)
	v.SetDefault("rag.backend", d.RAG.Backend)
	v.SetDefault("rag.model", d.RAG.Model)
	v.SetDefault("rag.top_k", d.RAG.TopK)
	v.SetDefault("rag.timeout", d.RAG.Timeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("catalog", d.Catalog)
}

// Load reads the configuration from the .d3fend-graphx.yaml file in the
// current directory or $HOME. Environment variables prefixed D3FEND_GRAPHX_
// (e.g. D3FEND_GRAPHX_NEO4J_PASSWORD) override the file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// stringFlags maps CLI flags onto config fields.
func stringFlags(cfg *Config) map[string]*string {
	return map[string]*string{
		"addr":         &cfg.Server.Addr,
		"neo4j-uri":    &cfg.Neo4j.URI,
		"neo4j-user":   &cfg.Neo4j.User,
		"neo4j-pass":   &cfg.Neo4j.Password,
		"graphdb-url":  &cfg.GraphDB.URL,
		"graphdb-repo": &cfg.GraphDB.Repository,
		"catalog":      &cfg.Catalog,
		"log-level":    &cfg.Log.Level,
		"rag-backend":  &cfg.RAG.Backend,
	}
}

// LoadAndMerge loads configuration from file and merges it with CLI flags.
// Priority: flags > environment > config file > defaults
func LoadAndMerge(cmd *cobra.Command) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	for name, field := range stringFlags(cfg) {
		if cmd.Flags().Changed(name) {
			*field, _ = cmd.Flags().GetString(name)
		}
	}

	if cmd.Flags().Changed("top-k") {
		cfg.RAG.TopK, _ = cmd.Flags().GetInt("top-k")
	}

	if cmd.Flags().Changed("timeout") {
		cfg.Server.QueryTimeout, _ = cmd.Flags().GetDuration("timeout")
	}

	return cfg, nil
}

// Save writes the configuration to a .d3fend-graphx.yaml file in the current directory.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = fmt.Sprintf("%s.%s", ConfigFileName, ConfigFileType)
	}

	v := viper.New()
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.cors_origin", cfg.Server.CORSOrigin)
	v.Set("server.read_timeout", cfg.Server.ReadTimeout.String())
	v.Set("server.query_timeout", cfg.Server.QueryTimeout.String())
	v.Set("graphdb.url", cfg.GraphDB.URL)
	v.Set("graphdb.repository", cfg.GraphDB.Repository)
	v.Set("graphdb.docker_image", cfg.GraphDB.DockerImage)
	v.Set("neo4j.uri", cfg.Neo4j.URI)
	v.Set("neo4j.user", cfg.Neo4j.User)
	v.Set("neo4j.password", cfg.Neo4j.Password)
	v.Set("neo4j.database", cfg.Neo4j.Database)
	v.Set("neo4j.max_pool_size", cfg.Neo4j.MaxPoolSize)
	v.Set("neo4j.docker_image", cfg.Neo4j.DockerImage)
	v.Set("rag.command", cfg.RAG.Command)
	v.Set("rag.backend", cfg.RAG.Backend)
	v.Set("rag.model", cfg.RAG.Model)
	v.Set("rag.top_k", cfg.RAG.TopK)
	v.Set("rag.timeout", cfg.RAG.Timeout.String())
	v.Set("log.level", cfg.Log.Level)
	if cfg.Catalog != "" {
		v.Set("catalog", cfg.Catalog)
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	// The file carries the Neo4j password.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set secure permissions on config file: %w", err)
	}

	return nil
}

// Exists checks if a config file exists in the current directory.
func Exists() bool {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(".")

	err := v.ReadInConfig()
	return err == nil
}
