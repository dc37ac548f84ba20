// Package eval implements the self-testing harness that certifies a
// rule's trigger logic against recorded fixture transcripts.
//
// Each eval case lives in its own directory under the rule's eval/
// folder and pairs one fixture transcript (transcript.jsonl, one JSON
// entry per line) with one expected trigger result
// (expected_output.json), plus an optional free-text ask (ask.txt).
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/langware-labs/skillit/internal/engine"
	"github.com/langware-labs/skillit/internal/logger"
	"github.com/langware-labs/skillit/internal/rule"
	"github.com/langware-labs/skillit/internal/transcript"
)

// Fixture file names inside a case directory
const (
	TranscriptFileName = "transcript.jsonl"
	ExpectedFileName   = "expected_output.json"
	AskFileName        = "ask.txt"
)

// CaseResult is the outcome of replaying one eval case. On failure both
// expected and actual are retained for diagnosis; Error is set when
// evaluation itself raised rather than returned a result.
type CaseResult struct {
	CaseName string              `json:"case_name"`
	Passed   bool                `json:"passed"`
	Expected *rule.TriggerResult `json:"expected,omitempty"`
	Actual   *rule.TriggerResult `json:"actual,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// RuleEvaluation aggregates the case results for one rule, sorted by
// case name so concurrent execution never changes the reported outcome.
type RuleEvaluation struct {
	RuleName string       `json:"rule_name"`
	Cases    []CaseResult `json:"cases"`
}

// Passed counts passing cases
func (re *RuleEvaluation) Passed() int {
	n := 0
	for _, c := range re.Cases {
		if c.Passed {
			n++
		}
	}
	return n
}

// Failed counts failing cases
func (re *RuleEvaluation) Failed() int {
	return len(re.Cases) - re.Passed()
}

// AllPassed reports whether every case passed. Zero cases is vacuously
// true; certification additionally requires the rule to validate.
func (re *RuleEvaluation) AllPassed() bool {
	return re.Failed() == 0
}

// SummaryTable renders a deterministic tabular report
func (re *RuleEvaluation) SummaryTable() string {
	if len(re.Cases) == 0 {
		return fmt.Sprintf("Rule '%s': no eval cases found.", re.RuleName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rule: %s  (%d/%d passed)\n\n", re.RuleName, re.Passed(), len(re.Cases))
	fmt.Fprintf(&b, "%-30s %10s %10s %8s\n", "Case", "Expected", "Actual", "Result")
	fmt.Fprintf(&b, "%s %s %s %s\n", strings.Repeat("-", 30), strings.Repeat("-", 10), strings.Repeat("-", 10), strings.Repeat("-", 8))

	for _, c := range re.Cases {
		expected, actual := "?", "?"
		if c.Expected != nil {
			expected = fmt.Sprintf("%t", c.Expected.Trigger)
		}
		if c.Actual != nil {
			actual = fmt.Sprintf("%t", c.Actual.Trigger)
		}
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%-30s %10s %10s %8s\n", c.CaseName, expected, actual, status)
		if c.Error != "" {
			fmt.Fprintf(&b, "%30s error: %s\n", "", c.Error)
		}
	}

	b.WriteString("\n")
	if re.AllPassed() {
		b.WriteString("Result: ALL PASSED")
	} else {
		fmt.Fprintf(&b, "Result: %d FAILED", re.Failed())
	}
	return b.String()
}

// Harness loads fixture cases, replays them through the trigger
// evaluator, and diffs actual against expected results.
type Harness struct {
	evaluator *engine.Evaluator
}

// NewHarness creates an eval harness
func NewHarness() *Harness {
	return &Harness{evaluator: engine.NewEvaluator()}
}

// Cases lists the case directories registered under a rule directory
func Cases(ruleDir string) ([]string, error) {
	evalDir := filepath.Join(ruleDir, rule.EvalDirName)
	entries, err := os.ReadDir(evalDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read eval directory: %w", err)
	}

	var cases []string
	for _, entry := range entries {
		if entry.IsDir() {
			cases = append(cases, entry.Name())
		}
	}
	sort.Strings(cases)
	return cases, nil
}

// RunEval replays every registered eval case for the rule rooted at
// ruleDir. Cases run concurrently; a failure in one case never prevents
// the others from running.
func (h *Harness) RunEval(r *rule.Rule, ruleDir string) (*RuleEvaluation, error) {
	caseNames, err := Cases(ruleDir)
	if err != nil {
		return nil, err
	}

	evaluation := &RuleEvaluation{RuleName: r.Name}
	if len(caseNames) == 0 {
		ruleLog := logger.WithRule(r.Name)
		ruleLog.Debug().Msg("No eval cases found")
		return evaluation, nil
	}

	results := make([]CaseResult, len(caseNames))
	var wg sync.WaitGroup
	for i, name := range caseNames {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			caseDir := filepath.Join(ruleDir, rule.EvalDirName, name)
			results[i] = h.RunCase(r, name, caseDir)
		}(i, name)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].CaseName < results[j].CaseName })
	evaluation.Cases = results
	return evaluation, nil
}

// RunCase replays a single eval case
func (h *Harness) RunCase(r *rule.Rule, name, caseDir string) CaseResult {
	result := CaseResult{CaseName: name}

	expected, err := loadExpected(filepath.Join(caseDir, ExpectedFileName))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Expected = expected

	t, err := transcript.ParseFile(filepath.Join(caseDir, TranscriptFileName))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	ask := loadAsk(filepath.Join(caseDir, AskFileName))

	actual, err := h.evaluator.Evaluate(t, r, ask)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Actual = &actual

	result.Passed = Compare(expected, &actual)
	if !result.Passed {
		ruleLog := logger.WithRule(r.Name)
		ruleLog.Debug().
			Str("case", name).
			Bool("expected", expected.Trigger).
			Bool("actual", actual.Trigger).
			Msg("Eval case failed")
	}
	return result
}

// Certify validates the rule configuration and replays its eval cases.
// A rule certifies only when the configuration is valid and every case
// passed; configuration errors block certification outright.
func (h *Harness) Certify(r *rule.Rule, ruleDir string) (*RuleEvaluation, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	evaluation, err := h.RunEval(r, ruleDir)
	if err != nil {
		return nil, err
	}

	r.Certified = evaluation.AllPassed()
	return evaluation, nil
}

func loadExpected(path string) (*rule.TriggerResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ExpectedFileName, err)
	}

	var expected rule.TriggerResult
	if err := json.Unmarshal(data, &expected); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ExpectedFileName, err)
	}
	return &expected, nil
}

func loadAsk(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Compare structurally diffs an actual trigger result against the
// expected one. Trigger must match exactly; actions must match by
// ordered (kind, salient-parameter presence); reason and content text
// are compared for presence only, never byte equality.
func Compare(expected, actual *rule.TriggerResult) bool {
	if expected.Trigger != actual.Trigger {
		return false
	}
	if !expected.Trigger {
		return true
	}

	// A firing result must carry a reason
	if actual.Reason == "" {
		return false
	}

	if len(expected.Actions) != len(actual.Actions) {
		return false
	}
	for i, want := range expected.Actions {
		got := actual.Actions[i]
		if want.Kind() != got.Kind() {
			return false
		}
		if !salientPresent(want, got) {
			return false
		}
	}
	return true
}

// salientPresent checks that the actual action carries the parameters
// the expected one declares, without comparing wording.
func salientPresent(want, got rule.Action) bool {
	switch w := want.(type) {
	case rule.AddContext:
		g := got.(rule.AddContext)
		return w.Content == "" || g.Content != ""
	case rule.Block:
		g := got.(rule.Block)
		return w.Reason == "" || g.Reason != ""
	case rule.Allow:
		g := got.(rule.Allow)
		return w.Reason == "" || g.Reason != ""
	case rule.ModifyInput:
		g := got.(rule.ModifyInput)
		for key := range w.Updates {
			if _, ok := g.Updates[key]; !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
