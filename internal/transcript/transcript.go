// Package transcript models a recorded Claude Code conversation as an
// ordered sequence of typed entries, read from JSONL fixture files.
package transcript

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrMalformed indicates a structurally invalid transcript. It is a hard
// error: evaluation must surface it rather than report trigger=false.
var ErrMalformed = errors.New("malformed transcript")

// EntryType classifies a transcript entry
type EntryType string

// Recognized entry types
const (
	EntryUser       EntryType = "user"
	EntryAssistant  EntryType = "assistant"
	EntryToolUse    EntryType = "tool_use"
	EntryToolResult EntryType = "tool_result"
	EntrySystem     EntryType = "system"
)

// Entry is a single recorded item in a transcript. IDs are unique and
// strictly increasing within one transcript.
type Entry struct {
	ID         int64                  `json:"id"`
	Type       EntryType              `json:"type"`
	Role       string                 `json:"role,omitempty"`
	Content    string                 `json:"content,omitempty"`
	Cwd        string                 `json:"cwd,omitempty"`
	ToolName   string                 `json:"tool_name,omitempty"`
	ToolInput  map[string]interface{} `json:"tool_input,omitempty"`
	ToolResult interface{}            `json:"tool_result,omitempty"`
}

// Transcript is an ordered, read-only snapshot of a conversation
type Transcript struct {
	Entries []Entry
}

// Parse reads a transcript from r, one JSON entry per line. Blank lines
// are skipped; an unparsable line is a malformed-transcript error.
func Parse(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)

	// Large entries (tool results) can exceed the default line buffer
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var entries []Entry
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNum, err)
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading transcript: %w", err)
	}

	return &Transcript{Entries: entries}, nil
}

// ParseFile reads a JSONL transcript from disk
func ParseFile(path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer func() { _ = file.Close() }()

	return Parse(file)
}

// Validate enforces the transcript input contract: at least one entry,
// strictly increasing ids, and at least one user entry.
func (t *Transcript) Validate() error {
	if t == nil || len(t.Entries) == 0 {
		return fmt.Errorf("%w: transcript has no entries", ErrMalformed)
	}

	var prev int64
	hasUser := false
	for i, entry := range t.Entries {
		if i > 0 && entry.ID <= prev {
			return fmt.Errorf("%w: entry id %d not greater than previous id %d", ErrMalformed, entry.ID, prev)
		}
		prev = entry.ID
		if entry.Type == EntryUser {
			hasUser = true
		}
	}

	if !hasUser {
		return fmt.Errorf("%w: transcript has no user entry", ErrMalformed)
	}

	return nil
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	return len(t.Entries)
}

// OfType returns all entries of the given type, in order
func (t *Transcript) OfType(typ EntryType) []Entry {
	var out []Entry
	for _, entry := range t.Entries {
		if entry.Type == typ {
			out = append(out, entry)
		}
	}
	return out
}

// Last returns the most recent entry satisfying pred. When several
// entries match a condition, the last one is the occurrence a result
// references.
func (t *Transcript) Last(pred func(Entry) bool) (Entry, bool) {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if pred(t.Entries[i]) {
			return t.Entries[i], true
		}
	}
	return Entry{}, false
}

// LastOfType returns the most recent entry of the given type
func (t *Transcript) LastOfType(typ EntryType) (Entry, bool) {
	return t.Last(func(e Entry) bool { return e.Type == typ })
}

// FieldText extracts the matchable text of an entry field. Content is the
// default field; tool entries also expose their input parameters.
func (e Entry) FieldText(field string) string {
	switch field {
	case "", "content":
		return e.Content
	case "tool_name":
		return e.ToolName
	case "cwd":
		return e.Cwd
	default:
		if e.ToolInput != nil {
			if v, ok := e.ToolInput[field]; ok {
				if s, ok := v.(string); ok {
					return s
				}
				return fmt.Sprintf("%v", v)
			}
		}
		return ""
	}
}
