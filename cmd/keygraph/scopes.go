package keygraph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridoc/keygraph/pkg/config"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List the scopes held by the graph store",
	RunE:  runScopes,
}

var scopeStatsCmd = &cobra.Command{
	Use:   "stats <scope>",
	Short: "Print node and edge counts for a scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeStats,
}

var scopeClearCmd = &cobra.Command{
	Use:   "clear <scope>",
	Short: "Remove all graph data for a scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeClear,
}

func init() {
	rootCmd.AddCommand(scopesCmd)
	scopesCmd.AddCommand(scopeStatsCmd)
	scopesCmd.AddCommand(scopeClearCmd)
}

func runScopes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, _, err := initializeEngine(cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	scopes, err := engine.ListScopes(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list scopes: %w", err)
	}

	if len(scopes) == 0 {
		fmt.Println("No scopes.")
		return nil
	}
	for _, scope := range scopes {
		fmt.Println(scope)
	}
	return nil
}

func runScopeStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, _, err := initializeEngine(cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	stats, err := engine.ScopeStats(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	return printJSON(stats)
}

func runScopeClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, _, err := initializeEngine(cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Clear(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to clear scope: %w", err)
	}

	fmt.Printf("Scope %q cleared.\n", args[0])
	return nil
}
