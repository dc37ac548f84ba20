package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/langware-labs/skillit/internal/engine"
	"github.com/langware-labs/skillit/internal/rule"
	"github.com/langware-labs/skillit/internal/transcript"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage activation rules",
	Long:  "Commands for listing and testing activation rules.",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules from the configured rule directories",
	RunE:  runRulesList,
}

var (
	testTranscriptFile string
	testAsk            string
)

var rulesTestCmd = &cobra.Command{
	Use:   "test <rule-dir>",
	Short: "Evaluate one rule against a transcript",
	Long: `Evaluate a rule's trigger condition against a JSONL transcript and
print the trigger result.

Example:
  skillit rules test ./my-rule --transcript session.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesTest,
}

func init() {
	rulesTestCmd.Flags().StringVarP(&testTranscriptFile, "transcript", "t", "", "JSONL transcript file (required)")
	rulesTestCmd.Flags().StringVar(&testAsk, "ask", "", "Optional free-text ask")
	_ = rulesTestCmd.MarkFlagRequired("transcript")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesTestCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogging(cfg)

	rules := rule.MergeDirs(cfg.Rules.SystemDir, cfg.Rules.UserDir, cfg.Rules.ProjectDir)
	if len(rules) == 0 {
		fmt.Println("No rules found.")
		return nil
	}

	fmt.Println("Activation Rules")
	fmt.Println("================")
	for _, r := range rules {
		status := "uncertified"
		if r.Certified {
			status = "certified"
		}
		fmt.Printf("  - %s (v%d, %s)\n", r.Name, r.Version, status)
		fmt.Printf("    %s\n", r.Summary())
	}

	return nil
}

func runRulesTest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogging(cfg)

	r, err := rule.LoadDirRule(args[0])
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	t, err := transcript.ParseFile(testTranscriptFile)
	if err != nil {
		return err
	}

	result, err := engine.NewEvaluator().Evaluate(t, r, testAsk)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
