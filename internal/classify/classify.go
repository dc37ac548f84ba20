// Package classify compares newly detected issues against a catalog of
// existing rules to decide whether each issue is new or already covered
// by a known rule.
package classify

import (
	"fmt"
	"strings"

	"github.com/langware-labs/skillit/internal/logger"
)

// Issue categories produced by upstream transcript analysis
const (
	CategoryMisunderstanding      = "misunderstanding"
	CategoryMistake               = "mistake"
	CategoryInefficiency          = "inefficiency"
	CategoryAutomationOpportunity = "automation_opportunity"
)

// Issue is an upstream-detected behavioral problem or automation
// opportunity. Occurrence is the id of the last transcript entry where
// the issue was observed.
type Issue struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Occurrence  int64  `json:"occurrence"`
}

// KnownRule is the slice of a catalog rule the matcher compares against
type KnownRule struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Classification values
const (
	New   = "new"
	Known = "known"
)

// ClassifiedIssue is the verdict for one issue. RuleName is set only
// when the issue matched a known rule.
type ClassifiedIssue struct {
	Name           string `json:"name"`
	Classification string `json:"classification"`
	RuleName       string `json:"rule_name,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Result is the classification output wire shape
type Result struct {
	ClassifiedIssues []ClassifiedIssue `json:"classified_issues"`
}

// Similarity scores the textual closeness of two descriptions in
// [0, 1]. The algorithm is a pluggable strategy; token overlap is the
// default, but embedding distance or a semantic model fit the same
// contract.
type Similarity interface {
	Score(a, b string) float64
}

// TokenOverlap is the default similarity strategy: Jaccard overlap of
// lowercased word sets.
type TokenOverlap struct{}

// Score computes the Jaccard similarity of the two texts' word sets
func (TokenOverlap) Score(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	overlap := 0
	for word := range wordsA {
		if wordsB[word] {
			overlap++
		}
	}
	union := len(wordsA) + len(wordsB) - overlap
	return float64(overlap) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		set[word] = true
	}
	return set
}

// DefaultThreshold is the confidence an issue must clear to be
// classified as known. Overridable via configuration.
const DefaultThreshold = 0.7

// Matcher is a stateless comparator over issues and known rules
type Matcher struct {
	similarity Similarity
	threshold  float64
}

// NewMatcher creates a matcher with the default token-overlap strategy
func NewMatcher() *Matcher {
	return &Matcher{similarity: TokenOverlap{}, threshold: DefaultThreshold}
}

// NewMatcherWith creates a matcher with an explicit strategy and
// threshold
func NewMatcherWith(similarity Similarity, threshold float64) *Matcher {
	if similarity == nil {
		similarity = TokenOverlap{}
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{similarity: similarity, threshold: threshold}
}

// Classify decides new-vs-known for each issue. A failure to judge one
// issue defaults that issue to new with a recorded error and never
// aborts the batch: over-detecting new issues is preferred to silently
// dropping one.
func (m *Matcher) Classify(issues []Issue, known []KnownRule) Result {
	out := Result{ClassifiedIssues: make([]ClassifiedIssue, 0, len(issues))}

	for _, issue := range issues {
		classified, err := m.classifyOne(issue, known)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("issue", issue.Name).
				Msg("Could not classify issue, defaulting to new")
			classified = ClassifiedIssue{
				Name:           issue.Name,
				Classification: New,
				Error:          err.Error(),
			}
		}
		out.ClassifiedIssues = append(out.ClassifiedIssues, classified)
	}

	return out
}

func (m *Matcher) classifyOne(issue Issue, known []KnownRule) (ClassifiedIssue, error) {
	text := strings.TrimSpace(issue.Title + " " + issue.Description)
	if text == "" {
		return ClassifiedIssue{}, fmt.Errorf("issue %q has no title or description", issue.Name)
	}

	bestScore := 0.0
	bestRule := ""
	for _, r := range known {
		if r.Description == "" {
			continue
		}
		score := m.similarity.Score(text, r.Description)
		// An exact description match should not be diluted by title words
		if s := m.similarity.Score(issue.Description, r.Description); s > score {
			score = s
		}
		if score > bestScore {
			bestScore = score
			bestRule = r.Name
		}
	}

	if bestScore >= m.threshold {
		logger.Debug().
			Str("issue", issue.Name).
			Str("rule", bestRule).
			Float64("score", bestScore).
			Msg("Issue matches known rule")
		return ClassifiedIssue{Name: issue.Name, Classification: Known, RuleName: bestRule}, nil
	}

	return ClassifiedIssue{Name: issue.Name, Classification: New}, nil
}
