package protocol

import "testing"

func TestParseLineAssistant(t *testing.T) {
	line := `{"type":"assistant","content":[{"type":"text","text":"hello "},{"type":"tool_use","id":"t1","name":"read_file","input":{"path":"main.go"}},{"type":"text","text":"world"}]}`

	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if rec.Type != RecordAssistant {
		t.Errorf("Type = %q, want %q", rec.Type, RecordAssistant)
	}

	deltas := rec.TextDeltas()
	if len(deltas) != 2 || deltas[0] != "hello " || deltas[1] != "world" {
		t.Errorf("TextDeltas() = %v, want [hello , world]", deltas)
	}

	uses := rec.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("ToolUses() length = %d, want 1", len(uses))
	}
	if uses[0].ID != "t1" || uses[0].Name != "read_file" {
		t.Errorf("tool use = %+v, want id t1 name read_file", uses[0])
	}
}

func TestParseLineToolResult(t *testing.T) {
	line := `{"type":"tool_result","tool_id":"t1","is_error":true,"output":"no such file"}`

	rec, err := ParseLine([]byte(line))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if rec.Type != RecordToolResult {
		t.Errorf("Type = %q, want %q", rec.Type, RecordToolResult)
	}
	if rec.ToolID != "t1" {
		t.Errorf("ToolID = %q, want %q", rec.ToolID, "t1")
	}
	if !rec.IsError {
		t.Error("IsError = false, want true")
	}
}

func TestParseLineTerminalResult(t *testing.T) {
	rec, err := ParseLine([]byte(`{"type":"result","status":"success","reason":"all checks passed"}`))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if rec.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", rec.Status, StatusSuccess)
	}
}

func TestParseLineRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   \t"},
		{"not json", "plain text output"},
		{"truncated json", `{"type":"assistant","content":[`},
		{"missing type", `{"content":[]}`},
		{"json array", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine([]byte(tt.line)); err == nil {
				t.Errorf("ParseLine(%q) error = nil, want error", tt.line)
			}
		})
	}
}

func TestTextDeltasIgnoresNonAssistant(t *testing.T) {
	rec := Record{Type: RecordToolResult, Content: []ContentBlock{{Type: BlockText, Text: "x"}}}
	if deltas := rec.TextDeltas(); deltas != nil {
		t.Errorf("TextDeltas() on tool_result = %v, want nil", deltas)
	}
}
