package hooks

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned when an event name is outside the fixed enumeration
var ErrUnknownEvent = errors.New("unknown hook event")

// EventType represents the type of Claude Code hook event
type EventType string

// Hook events a rule may bind to
const (
	PreToolUse        EventType = "PreToolUse"
	PostToolUse       EventType = "PostToolUse"
	UserPromptSubmit  EventType = "UserPromptSubmit"
	SessionStart      EventType = "SessionStart"
	Stop              EventType = "Stop"
	Notification      EventType = "Notification"
	SubagentStop      EventType = "SubagentStop"
	PreCompact        EventType = "PreCompact"
	PermissionRequest EventType = "PermissionRequest"
)

// All lists every recognized hook event
var All = []EventType{
	PreToolUse,
	PostToolUse,
	UserPromptSubmit,
	SessionStart,
	Stop,
	Notification,
	SubagentStop,
	PreCompact,
	PermissionRequest,
}

// Parse validates an event name against the fixed enumeration
func Parse(name string) (EventType, error) {
	for _, e := range All {
		if string(e) == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// Valid reports whether e is one of the recognized hook events
func (e EventType) Valid() bool {
	_, err := Parse(string(e))
	return err == nil
}

// Gating reports whether the event gates a pending permission check.
// Only gating events may carry block/allow actions.
func (e EventType) Gating() bool {
	switch e {
	case PreToolUse, PermissionRequest:
		return true
	default:
		return false
	}
}

// CommonInput contains fields common to all hook events
type CommonInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
	HookEventName  string `json:"hook_event_name"`
}

// PreToolUseInput is the input for PreToolUse and PermissionRequest hooks
type PreToolUseInput struct {
	CommonInput
	ToolName  string                 `json:"tool_name"`
	ToolInput map[string]interface{} `json:"tool_input"`
	ToolUseID string                 `json:"tool_use_id"`
}

// UserPromptSubmitInput is the input for UserPromptSubmit hooks
type UserPromptSubmitInput struct {
	CommonInput
	Prompt string `json:"prompt"`
}

// SessionStartInput is the input for SessionStart hooks
type SessionStartInput struct {
	CommonInput
	Source string `json:"source"` // startup, resume, clear, compact
}

// PermissionDecision represents the host-side decision for a gating event
type PermissionDecision string

// Permission decision values
const (
	PermissionAllow PermissionDecision = "allow"
	PermissionDeny  PermissionDecision = "deny"
)

// HookOutput is the wire shape the host consumes for a dispatched action
type HookOutput struct {
	Continue           bool                `json:"continue"`
	StopReason         string              `json:"stopReason,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// HookSpecificOutput contains event-specific output fields
type HookSpecificOutput struct {
	HookEventName            string                 `json:"hookEventName"`
	PermissionDecision       PermissionDecision     `json:"permissionDecision,omitempty"`
	PermissionDecisionReason string                 `json:"permissionDecisionReason,omitempty"`
	UpdatedInput             map[string]interface{} `json:"updatedInput,omitempty"`
	AdditionalContext        string                 `json:"additionalContext,omitempty"`
}

// NewContextOutput creates an output that adds context for the next turn
func NewContextOutput(eventName EventType, content string) *HookOutput {
	return &HookOutput{
		Continue: true,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:     string(eventName),
			AdditionalContext: content,
		},
	}
}

// NewAllowOutput creates an output that bypasses a pending permission check
func NewAllowOutput(eventName EventType, reason string) *HookOutput {
	return &HookOutput{
		Continue: true,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:            string(eventName),
			PermissionDecision:       PermissionAllow,
			PermissionDecisionReason: reason,
		},
	}
}

// NewBlockOutput creates an output that prevents the in-flight action
func NewBlockOutput(eventName EventType, reason string) *HookOutput {
	return &HookOutput{
		Continue:      false,
		StopReason:    reason,
		SystemMessage: reason,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName:            string(eventName),
			PermissionDecision:       PermissionDeny,
			PermissionDecisionReason: reason,
		},
	}
}

// NewModifyOutput creates an output that rewrites the pending tool input
func NewModifyOutput(eventName EventType, updates map[string]interface{}) *HookOutput {
	return &HookOutput{
		Continue: true,
		HookSpecificOutput: &HookSpecificOutput{
			HookEventName: string(eventName),
			UpdatedInput:  updates,
		},
	}
}
