package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `{"id":1,"type":"user","content":"run rm -rf /"}
{"id":2,"type":"tool_use","tool_name":"Bash","tool_input":{"command":"rm -rf /"}}

{"id":3,"type":"tool_result","content":"permission denied"}
`
	tr, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if tr.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", tr.Len())
	}
	if tr.Entries[0].Type != EntryUser {
		t.Errorf("entry 0 type = %q, want user", tr.Entries[0].Type)
	}
	if tr.Entries[1].ToolInput["command"] != "rm -rf /" {
		t.Errorf("entry 1 tool input not preserved: %v", tr.Entries[1].ToolInput)
	}
}

func TestParseInvalidLine(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"id":1,"type":"user"}` + "\nnot json\n"))
	if err == nil {
		t.Fatal("expected error for unparsable line")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := `{"id":1,"type":"user","content":"hello"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tr, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", tr.Len())
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr bool
	}{
		{
			name:    "empty transcript",
			entries: nil,
			wantErr: true,
		},
		{
			name: "no user entry",
			entries: []Entry{
				{ID: 1, Type: EntryAssistant, Content: "hi"},
				{ID: 2, Type: EntrySystem, Content: "SessionStart"},
			},
			wantErr: true,
		},
		{
			name: "ids not strictly increasing",
			entries: []Entry{
				{ID: 1, Type: EntryUser, Content: "a"},
				{ID: 1, Type: EntryAssistant, Content: "b"},
			},
			wantErr: true,
		},
		{
			name: "ids decreasing",
			entries: []Entry{
				{ID: 2, Type: EntryUser, Content: "a"},
				{ID: 1, Type: EntryAssistant, Content: "b"},
			},
			wantErr: true,
		},
		{
			name: "valid transcript",
			entries: []Entry{
				{ID: 1, Type: EntryUser, Content: "a"},
				{ID: 5, Type: EntryToolUse, ToolName: "Bash"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transcript{Entries: tt.entries}
			err := tr.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("error = %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestLast(t *testing.T) {
	tr := &Transcript{Entries: []Entry{
		{ID: 1, Type: EntryUser, Content: "first match"},
		{ID: 2, Type: EntryAssistant, Content: "no"},
		{ID: 3, Type: EntryUser, Content: "second match"},
	}}

	entry, ok := tr.Last(func(e Entry) bool { return strings.Contains(e.Content, "match") })
	if !ok {
		t.Fatal("expected a match")
	}
	if entry.ID != 3 {
		t.Errorf("Last returned entry %d, want 3 (most recent)", entry.ID)
	}

	_, ok = tr.Last(func(e Entry) bool { return e.Content == "absent" })
	if ok {
		t.Error("expected no match")
	}
}

func TestOfType(t *testing.T) {
	tr := &Transcript{Entries: []Entry{
		{ID: 1, Type: EntryUser},
		{ID: 2, Type: EntryToolUse},
		{ID: 3, Type: EntryToolUse},
	}}

	if got := len(tr.OfType(EntryToolUse)); got != 2 {
		t.Errorf("OfType(tool_use) returned %d entries, want 2", got)
	}
	if got := len(tr.OfType(EntrySystem)); got != 0 {
		t.Errorf("OfType(system) returned %d entries, want 0", got)
	}
}

func TestFieldText(t *testing.T) {
	entry := Entry{
		ID:        1,
		Type:      EntryToolUse,
		Content:   "running a command",
		Cwd:       "/tmp",
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "git status", "timeout": 30},
	}

	tests := []struct {
		field string
		want  string
	}{
		{field: "", want: "running a command"},
		{field: "content", want: "running a command"},
		{field: "tool_name", want: "Bash"},
		{field: "cwd", want: "/tmp"},
		{field: "command", want: "git status"},
		{field: "timeout", want: "30"},
		{field: "missing", want: ""},
	}

	for _, tt := range tests {
		if got := entry.FieldText(tt.field); got != tt.want {
			t.Errorf("FieldText(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}
