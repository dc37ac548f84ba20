package rule

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/langware-labs/skillit/internal/logger"
)

// RuleFileName is the metadata file inside each rule directory
const RuleFileName = "rule.yaml"

// EvalDirName is the fixture directory inside each rule directory
const EvalDirName = "eval"

// LoadFile reads one rule definition from a YAML file
func LoadFile(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var r Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}
	if r.Version == 0 {
		r.Version = 1
	}

	return &r, nil
}

// LoadDirRule reads the rule stored in a single rule directory
func LoadDirRule(dir string) (*Rule, error) {
	return LoadFile(filepath.Join(dir, RuleFileName))
}

// Save writes the rule definition into its directory, creating it if
// needed
func Save(r *Rule, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create rule directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, RuleFileName), data, 0644)
}

// LoadDir loads every rule under dir, one rule per subdirectory.
// Unreadable entries are skipped with a log line rather than aborting
// the load.
func LoadDir(dir string) []*Rule {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var rules []*Rule
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		r, err := LoadDirRule(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Debug().
				Err(err).
				Str("dir", entry.Name()).
				Msg("Skipping unreadable rule directory")
			continue
		}
		rules = append(rules, r)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// MergeDirs loads rules from system, user, and project directories with
// precedence: project > user > system (later overrides earlier by name).
func MergeDirs(systemDir, userDir, projectDir string) []*Rule {
	byName := make(map[string]*Rule)
	for _, dir := range []string{systemDir, userDir, projectDir} {
		if dir == "" {
			continue
		}
		for _, r := range LoadDir(dir) {
			byName[r.Name] = r
		}
	}

	merged := make([]*Rule, 0, len(byName))
	for _, r := range byName {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged
}
