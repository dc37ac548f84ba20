package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/langware-labs/skillit/internal/catalog"
	"github.com/langware-labs/skillit/internal/eval"
	"github.com/langware-labs/skillit/internal/logger"
	"github.com/langware-labs/skillit/internal/rule"
)

var evalRecord bool

var evalCmd = &cobra.Command{
	Use:   "eval <rule-dir>",
	Short: "Run a rule's eval cases and print the summary table",
	Long: `Replay every eval case registered under a rule directory and report
pass/fail per case. The command exits non-zero unless all cases passed.

With --record, the run and the resulting certification state are stored
in the rule catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().BoolVar(&evalRecord, "record", false, "Record the run in the rule catalog")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	initLogging(cfg)

	ruleDir := args[0]
	r, err := rule.LoadDirRule(ruleDir)
	if err != nil {
		return err
	}

	harness := eval.NewHarness()
	evaluation, err := harness.Certify(r, ruleDir)
	if err != nil {
		return err
	}

	fmt.Println(evaluation.SummaryTable())

	if evalRecord {
		store, err := catalog.NewSQLiteStore(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.SaveRule(r); err != nil {
			return err
		}
		if err := store.RecordEvalRun(r, evaluation); err != nil {
			return err
		}
		logger.Info().
			Str("rule", r.Name).
			Int("version", r.Version).
			Bool("certified", r.Certified).
			Msg("Recorded eval run")
	}

	if !evaluation.AllPassed() {
		return fmt.Errorf("%d eval case(s) failed", evaluation.Failed())
	}
	return nil
}
