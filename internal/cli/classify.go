package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/langware-labs/skillit/internal/catalog"
	"github.com/langware-labs/skillit/internal/classify"
)

var classifyIssuesFile string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify detected issues as new or known",
	Long: `Compare newly detected issues against the certified rules in the
catalog. Each issue is classified "known" (with the matching rule's
name) when its description is similar enough to an existing rule,
otherwise "new".

The issues file holds a JSON array of
{"name", "title", "description", "category", "occurrence"} objects.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyIssuesFile, "issues", "i", "", "JSON file with detected issues (required)")
	_ = classifyCmd.MarkFlagRequired("issues")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogging(cfg)

	data, err := os.ReadFile(classifyIssuesFile)
	if err != nil {
		return fmt.Errorf("failed to read issues file: %w", err)
	}

	var issues []classify.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return fmt.Errorf("failed to parse issues file: %w", err)
	}

	store, err := catalog.NewSQLiteStore(cfg.Catalog.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	known, err := store.KnownRules()
	if err != nil {
		return err
	}

	matcher := classify.NewMatcherWith(classify.TokenOverlap{}, cfg.Classify.Threshold)
	result := matcher.Classify(issues, known)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
