package engine

import (
	"fmt"
	"regexp"
	"sync"
)

// Matcher handles regex pattern matching for trigger conditions
type Matcher struct {
	cache sync.Map // caches compiled regex patterns
}

// NewMatcher creates a new pattern matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match checks a value against a regex pattern
func (m *Matcher) Match(pattern, value string) (bool, error) {
	re, err := m.getOrCompile(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re.MatchString(value), nil
}

// getOrCompile retrieves a compiled regex from cache or compiles it
func (m *Matcher) getOrCompile(pattern string) (*regexp.Regexp, error) {
	if cached, ok := m.cache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	m.cache.Store(pattern, re)
	return re, nil
}
