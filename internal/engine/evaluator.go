// Package engine implements the trigger evaluator: a pure mapping from
// (transcript, rule, optional ask) to a trigger result. It constructs
// action instances but never executes them; effects belong to the host.
package engine

import (
	"fmt"
	"strings"

	"github.com/langware-labs/skillit/internal/hooks"
	"github.com/langware-labs/skillit/internal/rule"
	"github.com/langware-labs/skillit/internal/transcript"
)

// Evaluator evaluates rule trigger conditions against transcripts. It
// holds no per-invocation state and is safe for concurrent use; the
// compiled-pattern cache is internal memoization only.
type Evaluator struct {
	matcher *Matcher
}

// NewEvaluator creates a new trigger evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{matcher: NewMatcher()}
}

// CurrentEvent derives the hook event a transcript snapshot was taken
// at. A trailing system entry naming a hook event wins; otherwise the
// last entry's type decides.
func CurrentEvent(t *transcript.Transcript) hooks.EventType {
	if sys, ok := t.LastOfType(transcript.EntrySystem); ok {
		if event, err := hooks.Parse(strings.TrimSpace(sys.Content)); err == nil {
			return event
		}
	}

	last := t.Entries[len(t.Entries)-1]
	switch last.Type {
	case transcript.EntryToolUse:
		return hooks.PreToolUse
	case transcript.EntryToolResult:
		return hooks.PostToolUse
	case transcript.EntryAssistant:
		return hooks.Stop
	default:
		return hooks.UserPromptSubmit
	}
}

// Evaluate decides whether the rule fires for the given transcript and
// optional ask. A malformed transcript or an unknown hook event in the
// rule's bindings is a hard error, never a silent trigger=false; a
// condition that legitimately does not match returns trigger=false with
// empty actions.
func (e *Evaluator) Evaluate(t *transcript.Transcript, r *rule.Rule, ask string) (rule.TriggerResult, error) {
	if err := t.Validate(); err != nil {
		return rule.TriggerResult{}, err
	}
	for _, event := range r.HookEvents {
		if !event.Valid() {
			return rule.TriggerResult{}, fmt.Errorf("rule %q: %w: %q", r.Name, hooks.ErrUnknownEvent, event)
		}
	}

	switch r.Trigger.Kind {
	case rule.ConditionEvent:
		return e.evaluateEvent(t, r), nil
	case rule.ConditionKeyword:
		return e.evaluateKeyword(t, r, ask), nil
	case rule.ConditionPattern:
		return e.evaluatePattern(t, r, ask)
	default:
		return rule.TriggerResult{}, fmt.Errorf("rule %q: unknown condition kind: %q", r.Name, r.Trigger.Kind)
	}
}

func (e *Evaluator) evaluateEvent(t *transcript.Transcript, r *rule.Rule) rule.TriggerResult {
	event := CurrentEvent(t)
	if !r.BoundTo(event) {
		return rule.NoTrigger()
	}

	last := t.Entries[len(t.Entries)-1]
	reason := fmt.Sprintf("hook event %s fired", event)
	return rule.Triggered(reason, last.ID, r.Actions)
}

func (e *Evaluator) evaluateKeyword(t *transcript.Transcript, r *rule.Rule, ask string) rule.TriggerResult {
	keyword := strings.ToLower(r.Trigger.Keyword)

	entry, ok := e.lastMatch(t, r.Trigger, func(text string) bool {
		return strings.Contains(strings.ToLower(text), keyword)
	})
	if ok {
		reason := fmt.Sprintf("keyword %q matched entry %d", r.Trigger.Keyword, entry.ID)
		return rule.Triggered(reason, entry.ID, r.Actions)
	}

	if r.Trigger.MatchAsk && ask != "" && strings.Contains(strings.ToLower(ask), keyword) {
		reason := fmt.Sprintf("keyword %q matched ask", r.Trigger.Keyword)
		return rule.Triggered(reason, 0, r.Actions)
	}

	return rule.NoTrigger()
}

func (e *Evaluator) evaluatePattern(t *transcript.Transcript, r *rule.Rule, ask string) (rule.TriggerResult, error) {
	var matchErr error
	entry, ok := e.lastMatch(t, r.Trigger, func(text string) bool {
		if matchErr != nil {
			return false
		}
		matched, err := e.matcher.Match(r.Trigger.Pattern, text)
		if err != nil {
			matchErr = err
			return false
		}
		return matched
	})
	if matchErr != nil {
		return rule.TriggerResult{}, fmt.Errorf("rule %q: %w", r.Name, matchErr)
	}
	if ok {
		reason := fmt.Sprintf("pattern %q matched entry %d", r.Trigger.Pattern, entry.ID)
		return rule.Triggered(reason, entry.ID, r.Actions), nil
	}

	if r.Trigger.MatchAsk && ask != "" {
		matched, err := e.matcher.Match(r.Trigger.Pattern, ask)
		if err != nil {
			return rule.TriggerResult{}, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if matched {
			reason := fmt.Sprintf("pattern %q matched ask", r.Trigger.Pattern)
			return rule.Triggered(reason, 0, r.Actions), nil
		}
	}

	return rule.NoTrigger(), nil
}

// lastMatch scans entries newest-first and returns the most recent one
// whose selected field satisfies pred. Recency is the tie-break rule:
// the reason always references the last matching entry.
func (e *Evaluator) lastMatch(t *transcript.Transcript, c rule.Condition, pred func(string) bool) (transcript.Entry, bool) {
	return t.Last(func(entry transcript.Entry) bool {
		if c.EntryType != "" && entry.Type != c.EntryType {
			return false
		}
		return pred(entry.FieldText(c.Field))
	})
}
