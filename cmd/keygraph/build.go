package keygraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridoc/keygraph/pkg/config"
	"github.com/veridoc/keygraph/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:     "build <scope> <file>...",
	Aliases: []string{"ingest"},
	Short:   "Build a scope graph from documents or a keyword mapping",
	Long: `Build (or rebuild) the keyword graph for a scope.

By default each file is treated as document text: pages are separated by
form-feed characters, keywords are extracted per chunk, and the mapping
is indexed. With --mapping the single input file must instead contain a
JSON array of {"keyword": ..., "fragments": [...]} entries, indexed as
given without extraction.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().Bool("mapping", false, "Treat the input file as a JSON keyword mapping")
}

func runBuild(cmd *cobra.Command, args []string) error {
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
	ctx := context.Background()

	asMapping, _ := cmd.Flags().GetBool("mapping")
	if asMapping {
		if len(args) != 2 {
			return fmt.Errorf("--mapping takes exactly one input file")
		}
		mapping, err := readMappingFile(args[1])
		if err != nil {
			return err
		}
		result, err := engine.Build(ctx, scope, mapping)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		return printJSON(result)
	}

	var pages []string
	for _, path := range args[1:] {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		// Form feeds mark page boundaries; a file without them is one page.
		pages = append(pages, strings.Split(string(data), "\f")...)
	}

	result, err := engine.BuildDocument(ctx, scope, pages)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return printJSON(result)
}

func readMappingFile(path string) (*types.KeywordMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var entries []struct {
		Keyword   string   `json:"keyword"`
		Fragments []string `json:"fragments"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}

	mapping := types.NewKeywordMap()
	for _, entry := range entries {
		for _, fragment := range entry.Fragments {
			mapping.Add(entry.Keyword, fragment)
		}
	}
	return mapping, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
