package eval

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/langware-labs/skillit/internal/hooks"
	"github.com/langware-labs/skillit/internal/logger"
	"github.com/langware-labs/skillit/internal/rule"
)

func TestMain(m *testing.M) {
	logger.InitQuiet()
	os.Exit(m.Run())
}

func testRule() *rule.Rule {
	return &rule.Rule{
		Name:        "block-destructive",
		Description: "Blocks destructive shell commands",
		HookEvents:  []hooks.EventType{hooks.PreToolUse},
		Trigger:     rule.Condition{Kind: rule.ConditionKeyword, Keyword: "rm -rf"},
		Actions:     rule.Actions{rule.Block{Reason: "destructive command"}},
	}
}

// writeCase lays out one eval case directory under the rule dir.
func writeCase(t *testing.T, ruleDir, name, transcriptLines, expectedJSON string) {
	t.Helper()
	caseDir := filepath.Join(ruleDir, rule.EvalDirName, name)
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		t.Fatalf("failed to create case dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, TranscriptFileName), []byte(transcriptLines), 0o644); err != nil {
		t.Fatalf("failed to write transcript: %v", err)
	}
	if err := os.WriteFile(filepath.Join(caseDir, ExpectedFileName), []byte(expectedJSON), 0o644); err != nil {
		t.Fatalf("failed to write expected output: %v", err)
	}
}

const (
	firingTranscript = `{"id": 1, "type": "user", "content": "please clean up"}
{"id": 2, "type": "user", "content": "run rm -rf /tmp/scratch"}
`
	benignTranscript = `{"id": 1, "type": "user", "content": "list the files"}
`
	expectTrigger = `{"trigger": true, "reason": "destructive", "actions": [{"type": "block", "reason": "x"}]}`
	expectQuiet   = `{"trigger": false, "actions": []}`
)

func TestRunEvalAllPassing(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "fires-on-rm", firingTranscript, expectTrigger)
	writeCase(t, ruleDir, "quiet-on-ls", benignTranscript, expectQuiet)

	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), ruleDir)
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}

	if evaluation.Passed() != 2 || evaluation.Failed() != 0 {
		t.Fatalf("passed/failed = %d/%d, want 2/0", evaluation.Passed(), evaluation.Failed())
	}
	if !evaluation.AllPassed() {
		t.Error("expected all cases to pass")
	}
}

func TestRunEvalExpectedMismatch(t *testing.T) {
	ruleDir := t.TempDir()
	// Expected says trigger but the transcript contains no keyword
	writeCase(t, ruleDir, "wrongly-expects-fire", benignTranscript, expectTrigger)

	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), ruleDir)
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}

	if evaluation.AllPassed() {
		t.Fatal("expected failing evaluation")
	}
	c := evaluation.Cases[0]
	if c.Passed {
		t.Error("case should have failed")
	}
	if c.Expected == nil || !c.Expected.Trigger {
		t.Error("failing case must retain the expected result")
	}
	if c.Actual == nil || c.Actual.Trigger {
		t.Error("failing case must retain the actual result")
	}
}

func TestRunEvalMalformedFixture(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "bad-transcript", "not json\n", expectQuiet)
	writeCase(t, ruleDir, "fires-on-rm", firingTranscript, expectTrigger)

	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), ruleDir)
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}

	// The broken case fails with an error without stopping the other
	if evaluation.Passed() != 1 || evaluation.Failed() != 1 {
		t.Fatalf("passed/failed = %d/%d, want 1/1", evaluation.Passed(), evaluation.Failed())
	}
	if evaluation.Cases[0].CaseName != "bad-transcript" || evaluation.Cases[0].Error == "" {
		t.Errorf("broken case should record an error, got %+v", evaluation.Cases[0])
	}
}

func TestRunEvalNoCases(t *testing.T) {
	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), t.TempDir())
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}
	if len(evaluation.Cases) != 0 {
		t.Fatalf("expected zero cases, got %d", len(evaluation.Cases))
	}
	if !evaluation.AllPassed() {
		t.Error("zero cases is vacuously all-passed")
	}
}

func TestRunEvalSortedByCaseName(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "zz-last", benignTranscript, expectQuiet)
	writeCase(t, ruleDir, "aa-first", benignTranscript, expectQuiet)
	writeCase(t, ruleDir, "mm-middle", benignTranscript, expectQuiet)

	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), ruleDir)
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}

	var names []string
	for _, c := range evaluation.Cases {
		names = append(names, c.CaseName)
	}
	want := []string{"aa-first", "mm-middle", "zz-last"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("case order = %v, want %v", names, want)
		}
	}
}

func TestRunCaseWithAsk(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "ask-match", benignTranscript, expectTrigger)
	caseDir := filepath.Join(ruleDir, rule.EvalDirName, "ask-match")
	if err := os.WriteFile(filepath.Join(caseDir, AskFileName), []byte("rm -rf the cache\n"), 0o644); err != nil {
		t.Fatalf("failed to write ask: %v", err)
	}

	r := testRule()
	r.Trigger.MatchAsk = true

	h := NewHarness()
	result := h.RunCase(r, "ask-match", caseDir)
	if !result.Passed {
		t.Errorf("ask should satisfy the trigger, got %+v", result)
	}
}

func TestSummaryTable(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "fires-on-rm", firingTranscript, expectTrigger)
	writeCase(t, ruleDir, "wrongly-expects-fire", benignTranscript, expectTrigger)

	h := NewHarness()
	evaluation, err := h.RunEval(testRule(), ruleDir)
	if err != nil {
		t.Fatalf("RunEval failed: %v", err)
	}

	table := evaluation.SummaryTable()
	for _, want := range []string{
		"Rule: block-destructive  (1/2 passed)",
		"fires-on-rm",
		"wrongly-expects-fire",
		"PASS",
		"FAIL",
		"Result: 1 FAILED",
	} {
		if !strings.Contains(table, want) {
			t.Errorf("summary table missing %q:\n%s", want, table)
		}
	}

	// Determinism: rendering twice yields identical output
	if table != evaluation.SummaryTable() {
		t.Error("summary table is not deterministic")
	}
}

func TestSummaryTableAllPassed(t *testing.T) {
	evaluation := &RuleEvaluation{
		RuleName: "block-destructive",
		Cases:    []CaseResult{{CaseName: "fires-on-rm", Passed: true}},
	}
	if !strings.Contains(evaluation.SummaryTable(), "Result: ALL PASSED") {
		t.Errorf("expected ALL PASSED marker:\n%s", evaluation.SummaryTable())
	}
}

func TestCertify(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "fires-on-rm", firingTranscript, expectTrigger)

	r := testRule()
	h := NewHarness()
	evaluation, err := h.Certify(r, ruleDir)
	if err != nil {
		t.Fatalf("Certify failed: %v", err)
	}
	if !evaluation.AllPassed() || !r.Certified {
		t.Error("expected rule to certify")
	}
}

func TestCertifyFailingCase(t *testing.T) {
	ruleDir := t.TempDir()
	writeCase(t, ruleDir, "wrongly-expects-fire", benignTranscript, expectTrigger)

	r := testRule()
	r.Certified = true
	h := NewHarness()
	evaluation, err := h.Certify(r, ruleDir)
	if err != nil {
		t.Fatalf("Certify failed: %v", err)
	}
	if evaluation.AllPassed() {
		t.Fatal("expected a failing case")
	}
	if r.Certified {
		t.Error("failing eval must clear the certified flag")
	}
}

func TestCertifyInvalidRule(t *testing.T) {
	r := testRule()
	// Block is only legal on permission-gating events
	r.HookEvents = []hooks.EventType{hooks.PostToolUse}

	h := NewHarness()
	if _, err := h.Certify(r, t.TempDir()); err == nil {
		t.Fatal("invalid configuration must block certification")
	}
	if r.Certified {
		t.Error("certified flag must stay unset on configuration error")
	}
}

func TestCertifyNoCases(t *testing.T) {
	r := testRule()
	h := NewHarness()
	evaluation, err := h.Certify(r, t.TempDir())
	if err != nil {
		t.Fatalf("Certify failed: %v", err)
	}
	if !evaluation.AllPassed() || !r.Certified {
		t.Error("zero eval cases certifies vacuously")
	}
}

func TestCompare(t *testing.T) {
	firing := func(actions ...rule.Action) *rule.TriggerResult {
		return &rule.TriggerResult{Trigger: true, Reason: "matched", Actions: rule.Actions(actions)}
	}

	tests := []struct {
		name     string
		expected *rule.TriggerResult
		actual   *rule.TriggerResult
		want     bool
	}{
		{
			name:     "both quiet",
			expected: &rule.TriggerResult{Trigger: false},
			actual:   &rule.TriggerResult{Trigger: false},
			want:     true,
		},
		{
			name:     "trigger mismatch",
			expected: firing(rule.Block{Reason: "x"}),
			actual:   &rule.TriggerResult{Trigger: false},
			want:     false,
		},
		{
			name:     "reason wording differs but present",
			expected: &rule.TriggerResult{Trigger: true, Reason: "exact words", Actions: rule.Actions{rule.Block{Reason: "x"}}},
			actual:   firing(rule.Block{Reason: "other words"}),
			want:     true,
		},
		{
			name:     "missing reason fails",
			expected: firing(rule.Block{Reason: "x"}),
			actual:   &rule.TriggerResult{Trigger: true, Actions: rule.Actions{rule.Block{Reason: "x"}}},
			want:     false,
		},
		{
			name:     "action count mismatch",
			expected: firing(rule.Block{Reason: "x"}),
			actual:   firing(rule.Block{Reason: "x"}, rule.AddContext{Content: "y"}),
			want:     false,
		},
		{
			name:     "action kind order matters",
			expected: firing(rule.Block{Reason: "x"}, rule.AddContext{Content: "y"}),
			actual:   firing(rule.AddContext{Content: "y"}, rule.Block{Reason: "x"}),
			want:     false,
		},
		{
			name:     "content presence only",
			expected: firing(rule.AddContext{Content: "expected text"}),
			actual:   firing(rule.AddContext{Content: "completely different text"}),
			want:     true,
		},
		{
			name:     "empty actual content fails",
			expected: firing(rule.AddContext{Content: "expected text"}),
			actual:   firing(rule.AddContext{Content: ""}),
			want:     false,
		},
		{
			name: "modify input keys must exist",
			expected: firing(rule.ModifyInput{Updates: map[string]interface{}{
				"command": "sanitized",
			}}),
			actual: firing(rule.ModifyInput{Updates: map[string]interface{}{
				"command": "some other value",
			}}),
			want: true,
		},
		{
			name: "modify input missing key fails",
			expected: firing(rule.ModifyInput{Updates: map[string]interface{}{
				"command": "sanitized",
			}}),
			actual: firing(rule.ModifyInput{Updates: map[string]interface{}{
				"timeout": 30,
			}}),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.expected, tt.actual); got != tt.want {
				t.Errorf("Compare = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpectedRoundTrip(t *testing.T) {
	// The expected-output wire shape decodes into typed actions
	var expected rule.TriggerResult
	if err := json.Unmarshal([]byte(expectTrigger), &expected); err != nil {
		t.Fatalf("failed to decode expected output: %v", err)
	}
	if len(expected.Actions) != 1 || expected.Actions[0].Kind() != rule.ActionBlock {
		t.Fatalf("unexpected decode: %+v", expected)
	}
}
