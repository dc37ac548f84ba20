// Package rule defines activation rules: a named trigger condition plus
// an ordered action template, bound to a set of hook events. Rules are
// immutable once certified; re-authoring creates a new version so that
// recorded eval history stays valid.
package rule

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/langware-labs/skillit/internal/hooks"
	"github.com/langware-labs/skillit/internal/transcript"
)

// ErrInvalidConfig indicates a rule definition that can never be trusted,
// e.g. a block action declared against a non-gating hook event. It is a
// configuration error caught at certification time, not a runtime one.
var ErrInvalidConfig = errors.New("invalid rule configuration")

// ConditionKind names the trigger predicate variants
type ConditionKind string

// Trigger condition kinds
const (
	// ConditionKeyword matches when an entry field contains the keyword
	ConditionKeyword ConditionKind = "keyword"
	// ConditionPattern matches when an entry field matches a regex
	ConditionPattern ConditionKind = "pattern"
	// ConditionEvent fires unconditionally on any of the rule's hook events
	ConditionEvent ConditionKind = "event"
)

// Condition is the declarative trigger predicate over a transcript plus
// an optional ask string. EntryType narrows which entries are inspected;
// Field selects the inspected text (content by default, or a tool input
// parameter such as command).
type Condition struct {
	Kind      ConditionKind        `json:"kind" yaml:"kind"`
	Keyword   string               `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Pattern   string               `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	EntryType transcript.EntryType `json:"entry_type,omitempty" yaml:"entry_type,omitempty"`
	Field     string               `json:"field,omitempty" yaml:"field,omitempty"`
	// MatchAsk extends keyword/pattern matching to the free-text ask
	MatchAsk bool `json:"match_ask,omitempty" yaml:"match_ask,omitempty"`
}

// Rule is a declarative activation rule. Name doubles as the catalog key
// and a filesystem-safe folder name.
type Rule struct {
	Name        string            `json:"name" yaml:"name"`
	Version     int               `json:"version,omitempty" yaml:"version,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	HookEvents  []hooks.EventType `json:"hook_events" yaml:"hook_events"`
	Trigger     Condition         `json:"trigger" yaml:"trigger"`
	Actions     Actions           `json:"actions" yaml:"actions"`
	// Certified is set once every eval case passes. Uncertified rules'
	// block/modify_input actions must not be trusted by the host.
	Certified bool `json:"certified,omitempty" yaml:"certified,omitempty"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks the rule definition for configuration errors. It is
// run at certification time; a rule that fails here never certifies.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: rule has no name", ErrInvalidConfig)
	}
	if !namePattern.MatchString(r.Name) {
		return fmt.Errorf("%w: rule name %q is not filesystem-safe", ErrInvalidConfig, r.Name)
	}

	if len(r.HookEvents) == 0 {
		return fmt.Errorf("%w: rule %q declares no hook events", ErrInvalidConfig, r.Name)
	}
	seen := make(map[hooks.EventType]bool, len(r.HookEvents))
	for _, event := range r.HookEvents {
		if !event.Valid() {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidConfig, r.Name, hooks.ErrUnknownEvent)
		}
		seen[event] = true
	}

	if err := r.Trigger.validate(); err != nil {
		return fmt.Errorf("%w: rule %q: %v", ErrInvalidConfig, r.Name, err)
	}

	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: rule %q has no actions", ErrInvalidConfig, r.Name)
	}
	for _, action := range r.Actions {
		if err := action.validate(); err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidConfig, r.Name, err)
		}
		if Gating(action) && !r.hasGatingEvent() {
			return fmt.Errorf("%w: rule %q declares a %s action but no permission-gating hook event",
				ErrInvalidConfig, r.Name, action.Kind())
		}
	}

	return nil
}

func (r *Rule) hasGatingEvent() bool {
	for _, event := range r.HookEvents {
		if event.Gating() {
			return true
		}
	}
	return false
}

// BoundTo reports whether the rule is declared for the given event
func (r *Rule) BoundTo(event hooks.EventType) bool {
	for _, e := range r.HookEvents {
		if e == event {
			return true
		}
	}
	return false
}

func (c *Condition) validate() error {
	switch c.Kind {
	case ConditionKeyword:
		if c.Keyword == "" {
			return fmt.Errorf("keyword condition requires a keyword")
		}
	case ConditionPattern:
		if c.Pattern == "" {
			return fmt.Errorf("pattern condition requires a pattern")
		}
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %v", c.Pattern, err)
		}
	case ConditionEvent:
		// Unconditional on the bound events, nothing more to check
	default:
		return fmt.Errorf("unknown condition kind: %q", c.Kind)
	}

	if c.EntryType != "" {
		switch c.EntryType {
		case transcript.EntryUser, transcript.EntryAssistant, transcript.EntryToolUse,
			transcript.EntryToolResult, transcript.EntrySystem:
		default:
			return fmt.Errorf("unknown entry type: %q", c.EntryType)
		}
	}

	return nil
}

// TriggerResult is the evaluator's verdict for one (transcript, rule)
// pair. Reason is required when the rule triggered; Actions is empty
// when it did not.
type TriggerResult struct {
	Trigger bool    `json:"trigger"`
	Reason  string  `json:"reason,omitempty"`
	EntryID int64   `json:"entry_id,omitempty"`
	Actions Actions `json:"actions"`
}

// NoTrigger is the verdict for a condition that legitimately did not match
func NoTrigger() TriggerResult {
	return TriggerResult{Trigger: false, Actions: Actions{}}
}

// Triggered builds a firing verdict referencing the matched entry
func Triggered(reason string, entryID int64, actions Actions) TriggerResult {
	if reason == "" {
		reason = "rule triggered"
	}
	out := make(Actions, len(actions))
	copy(out, actions)
	return TriggerResult{Trigger: true, Reason: reason, EntryID: entryID, Actions: out}
}

// Summary renders a one-line description used in rule listings and as
// the classification matcher's comparison text.
func (r *Rule) Summary() string {
	desc := r.Description
	if desc == "" {
		switch r.Trigger.Kind {
		case ConditionKeyword:
			desc = fmt.Sprintf("matches %q", r.Trigger.Keyword)
		case ConditionPattern:
			desc = fmt.Sprintf("matches pattern %q", r.Trigger.Pattern)
		case ConditionEvent:
			desc = "fires on bound events"
		}
	}

	events := make([]string, 0, len(r.HookEvents))
	for _, e := range r.HookEvents {
		events = append(events, string(e))
	}
	return fmt.Sprintf("%s [%s]: %s", r.Name, strings.Join(events, ", "), desc)
}
