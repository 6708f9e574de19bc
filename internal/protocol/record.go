// Package protocol defines the newline-delimited JSON record format spoken
// by worker processes on their standard output.
//
// A worker emits one record per line. Three record types exist:
//
//   - "assistant": a fragment of assistant-visible content, carrying an
//     ordered list of content blocks (text deltas and tool invocations)
//   - "tool_result": the outcome of a previously invoked tool, matched by ID
//   - "result": the worker's terminal status for the whole invocation
//
// Parsing is fail-soft by design: the stream originates from a process that
// is not fully trusted, so callers skip malformed lines rather than abort.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record types.
const (
	RecordAssistant  = "assistant"
	RecordToolResult = "tool_result"
	RecordResult     = "result"
)

// Content block types within an assistant record.
const (
	BlockText    = "text"
	BlockToolUse = "tool_use"
)

// Terminal statuses a worker may report in a result record.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ContentBlock is one element of an assistant record's content list.
// Text blocks carry a delta of assistant-visible text; tool_use blocks
// announce a tool invocation with a worker-assigned ID.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Record is a single parsed line of worker output.
type Record struct {
	Type    string         `json:"type"`
	Content []ContentBlock `json:"content,omitempty"`

	// Tool result fields.
	ToolID  string `json:"tool_id,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Output  string `json:"output,omitempty"`

	// Terminal result fields.
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ParseLine decodes one line of worker output into a Record.
// Blank lines and lines that are not valid JSON objects return an error;
// callers are expected to log and skip rather than fail the invocation.
func ParseLine(line []byte) (Record, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return Record{}, fmt.Errorf("empty line")
	}

	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return Record{}, fmt.Errorf("malformed record: %w", err)
	}
	if rec.Type == "" {
		return Record{}, fmt.Errorf("record missing type field")
	}
	return rec, nil
}

// TextDeltas returns the concatenable text fragments of an assistant record
// in content order. Non-text blocks are skipped.
func (r Record) TextDeltas() []string {
	if r.Type != RecordAssistant {
		return nil
	}
	var deltas []string
	for _, block := range r.Content {
		if block.Type == BlockText && block.Text != "" {
			deltas = append(deltas, block.Text)
		}
	}
	return deltas
}

// ToolUses returns the tool invocation blocks of an assistant record.
func (r Record) ToolUses() []ContentBlock {
	if r.Type != RecordAssistant {
		return nil
	}
	var uses []ContentBlock
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}
