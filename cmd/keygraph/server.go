package keygraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridoc/keygraph/pkg/config"
	"github.com/veridoc/keygraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the KeyGraph HTTP server",
	Long: `Start the KeyGraph HTTP server to provide REST API access to the
keyword graph engine.

The server provides endpoints for:
- Building scope graphs from keyword mappings or raw document pages
- Retrieving evidence fragments for natural-language queries
- Scope statistics and administration
- Health checks and Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Database flags
	serverCmd.Flags().String("db-driver", "badger", "Graph store driver (badger, neo4j, memory)")
	serverCmd.Flags().String("db-uri", "./keygraph_db", "Database URI/path")
	serverCmd.Flags().String("db-username", "", "Database username (neo4j only)")
	serverCmd.Flags().String("db-password", "", "Database password (neo4j only)")
	serverCmd.Flags().String("db-database", "", "Database name (neo4j only)")
	serverCmd.Flags().Bool("db-in-memory", false, "Run the badger store in memory")

	// Matcher flags
	serverCmd.Flags().String("matcher-model", "gpt-4o-mini", "Vocabulary matcher model")
	serverCmd.Flags().String("matcher-api-key", "", "Vocabulary matcher API key")
	serverCmd.Flags().String("matcher-base-url", "", "Vocabulary matcher base URL")

	// Embedding flags
	serverCmd.Flags().String("embedding-model", "text-embedding-3-small", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Retrieval flags
	serverCmd.Flags().Float32("sim-threshold", 0.8, "Cosine similarity floor for keyword matching")
	serverCmd.Flags().Int("top-k", 1, "Fuzzy-match candidates per query keyword")
	serverCmd.Flags().Int("max-depth", 1, "Graph expansion depth bound")
	serverCmd.Flags().Bool("embed-mode", true, "Use embeddings for keyword matching and similarity edges")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	// Validate configuration
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg)

	// Initialize the engine
	engine, registry, err := initializeEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	// Create and setup server
	srv := server.New(cfg, engine, registry, log)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Shutdown server
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Database flags
	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}
	if cmd.Flags().Changed("db-in-memory") {
		cfg.Database.InMemory, _ = cmd.Flags().GetBool("db-in-memory")
	}

	// Matcher flags
	if cmd.Flags().Changed("matcher-model") {
		cfg.Matcher.Model, _ = cmd.Flags().GetString("matcher-model")
	}
	if cmd.Flags().Changed("matcher-api-key") {
		cfg.Matcher.APIKey, _ = cmd.Flags().GetString("matcher-api-key")
	}
	if cmd.Flags().Changed("matcher-base-url") {
		cfg.Matcher.BaseURL, _ = cmd.Flags().GetString("matcher-base-url")
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	// Retrieval flags
	if cmd.Flags().Changed("sim-threshold") {
		cfg.Retrieval.SimThreshold, _ = cmd.Flags().GetFloat32("sim-threshold")
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Retrieval.TopKKeywords, _ = cmd.Flags().GetInt("top-k")
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.Retrieval.MaxDepth, _ = cmd.Flags().GetInt("max-depth")
	}
	if cmd.Flags().Changed("embed-mode") {
		cfg.Retrieval.EmbedMode, _ = cmd.Flags().GetBool("embed-mode")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	if cfg.Database.Driver != "memory" && cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}

	if cfg.Retrieval.SimThreshold < 0 || cfg.Retrieval.SimThreshold > 1 {
		return fmt.Errorf("sim threshold must be within [0, 1]: %g", cfg.Retrieval.SimThreshold)
	}

	if cfg.Retrieval.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative: %d", cfg.Retrieval.MaxDepth)
	}
	return nil
}
