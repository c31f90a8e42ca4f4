package keygraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridoc/keygraph/pkg/config"
	"github.com/veridoc/keygraph/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <scope> <query>...",
	Short: "Retrieve evidence fragments for a query",
	Long: `Retrieve the evidence fragments a scope's graph holds for a query.

The query is matched against the scope's keyword vocabulary, the
best-matching keywords seed the result set, and the graph is expanded
through keyword relationships up to the configured depth. With
--keywords the matching step is skipped and the given keywords are used
directly.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringSlice("keywords", nil, "Use these keywords directly instead of matching the query")
	queryCmd.Flags().Bool("json", false, "Print fragments as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)
	engine, _, err := initializeEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Close()

	scope := args[0]
	query := strings.Join(args[1:], " ")
	ctx := context.Background()

	keywords, _ := cmd.Flags().GetStringSlice("keywords")

	var fragments []*types.Fragment
	if len(keywords) > 0 {
		fragments, err = engine.RetrieveWithKeywords(ctx, scope, keywords)
	} else {
		fragments, err = engine.Retrieve(ctx, scope, query)
	}
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(fragments)
	}

	if len(fragments) == 0 {
		fmt.Println("No evidence found.")
		return nil
	}
	for _, fragment := range fragments {
		fmt.Printf("[%d] %s\n", fragment.ID, fragment.Content)
	}
	return nil
}
