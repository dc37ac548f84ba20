package rule

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/langware-labs/skillit/internal/hooks"
)

// ActionKind names one of the four action variants a rule may emit
type ActionKind string

// Recognized action kinds
const (
	ActionAddContext  ActionKind = "add_context"
	ActionBlock       ActionKind = "block"
	ActionAllow       ActionKind = "allow"
	ActionModifyInput ActionKind = "modify_input"
)

// Action is the closed union over the four action variants. Each variant
// carries a fixed parameter record, so a well-typed Action can never be
// missing a required field at dispatch time.
type Action interface {
	Kind() ActionKind
	validate() error
}

// AddContext asks the host to inject content into the next reasoning
// context. Non-blocking.
type AddContext struct {
	Content string `json:"content" yaml:"content"`
}

// Block asks the host to prevent the in-flight action and surface the
// reason to the actor.
type Block struct {
	Reason string `json:"reason" yaml:"reason"`
}

// Allow asks the host to bypass a pending permission check. Only valid
// for permission-gating hook events.
type Allow struct {
	Reason string `json:"reason" yaml:"reason"`
}

// ModifyInput asks the host to apply field updates onto the pending tool
// input before execution. The transcript itself is never mutated.
type ModifyInput struct {
	Updates map[string]interface{} `json:"updates" yaml:"updates"`
}

// Kind returns ActionAddContext
func (AddContext) Kind() ActionKind { return ActionAddContext }

// Kind returns ActionBlock
func (Block) Kind() ActionKind { return ActionBlock }

// Kind returns ActionAllow
func (Allow) Kind() ActionKind { return ActionAllow }

// Kind returns ActionModifyInput
func (ModifyInput) Kind() ActionKind { return ActionModifyInput }

func (a AddContext) validate() error {
	if a.Content == "" {
		return fmt.Errorf("add_context action requires content")
	}
	return nil
}

func (a Block) validate() error {
	if a.Reason == "" {
		return fmt.Errorf("block action requires a reason")
	}
	return nil
}

func (a Allow) validate() error {
	if a.Reason == "" {
		return fmt.Errorf("allow action requires a reason")
	}
	return nil
}

func (a ModifyInput) validate() error {
	if len(a.Updates) == 0 {
		return fmt.Errorf("modify_input action requires at least one update")
	}
	return nil
}

// Gating reports whether the action is only well-formed on a
// permission-gating hook event
func Gating(a Action) bool {
	switch a.Kind() {
	case ActionBlock, ActionAllow:
		return true
	default:
		return false
	}
}

// Dispatch realizes the host wire output for an action on the given
// event. The engine constructs this output but never executes it; the
// effect belongs to the host.
func Dispatch(a Action, event hooks.EventType) *hooks.HookOutput {
	switch act := a.(type) {
	case AddContext:
		return hooks.NewContextOutput(event, act.Content)
	case Block:
		return hooks.NewBlockOutput(event, act.Reason)
	case Allow:
		return hooks.NewAllowOutput(event, act.Reason)
	case ModifyInput:
		return hooks.NewModifyOutput(event, act.Updates)
	default:
		return nil
	}
}

// wireAction is the flat interchange form:
// {"type": "...", ...kind-specific params}
type wireAction struct {
	Type    ActionKind             `json:"type" yaml:"type"`
	Content string                 `json:"content,omitempty" yaml:"content,omitempty"`
	Reason  string                 `json:"reason,omitempty" yaml:"reason,omitempty"`
	Updates map[string]interface{} `json:"updates,omitempty" yaml:"updates,omitempty"`
}

func toWire(a Action) wireAction {
	switch act := a.(type) {
	case AddContext:
		return wireAction{Type: ActionAddContext, Content: act.Content}
	case Block:
		return wireAction{Type: ActionBlock, Reason: act.Reason}
	case Allow:
		return wireAction{Type: ActionAllow, Reason: act.Reason}
	case ModifyInput:
		return wireAction{Type: ActionModifyInput, Updates: act.Updates}
	default:
		return wireAction{}
	}
}

func fromWire(w wireAction) (Action, error) {
	switch w.Type {
	case ActionAddContext:
		return AddContext{Content: w.Content}, nil
	case ActionBlock:
		return Block{Reason: w.Reason}, nil
	case ActionAllow:
		return Allow{Reason: w.Reason}, nil
	case ActionModifyInput:
		return ModifyInput{Updates: w.Updates}, nil
	default:
		return nil, fmt.Errorf("unknown action type: %q", w.Type)
	}
}

// Actions is an ordered action list with wire-shape (de)serialization
type Actions []Action

// MarshalJSON renders the flat wire shape for each action
func (as Actions) MarshalJSON() ([]byte, error) {
	wire := make([]wireAction, 0, len(as))
	for _, a := range as {
		wire = append(wire, toWire(a))
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the flat wire shape back into typed actions
func (as *Actions) UnmarshalJSON(data []byte) error {
	var wire []wireAction
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(Actions, 0, len(wire))
	for _, w := range wire {
		a, err := fromWire(w)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*as = out
	return nil
}

// MarshalYAML renders the flat wire shape for each action
func (as Actions) MarshalYAML() (interface{}, error) {
	wire := make([]wireAction, 0, len(as))
	for _, a := range as {
		wire = append(wire, toWire(a))
	}
	return wire, nil
}

// UnmarshalYAML parses the flat wire shape back into typed actions
func (as *Actions) UnmarshalYAML(node *yaml.Node) error {
	var wire []wireAction
	if err := node.Decode(&wire); err != nil {
		return err
	}
	out := make(Actions, 0, len(wire))
	for _, w := range wire {
		a, err := fromWire(w)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*as = out
	return nil
}
