// Package hookevent defines the wire contract between the agent runtime and
// the gate binary: the PreToolUse event read from stdin and the decision
// document written to stdout. The field names and exit codes are fixed by
// the hook protocol and must not change.
package hookevent

import (
	"encoding/json"
	"fmt"
	"io"
)

// EventPreToolUse is the only event kind the gate acts on. All other
// events pass through unexamined.
const EventPreToolUse = "PreToolUse"

// Event is one hook invocation as delivered by the agent runtime.
type Event struct {
	// Event is the lifecycle event name (e.g. "PreToolUse").
	Event string `json:"event"`

	// ToolName is the tool the agent is about to execute.
	ToolName string `json:"tool_name"`

	// ToolInput carries the tool's parameters. The gate never interprets
	// it beyond extracting display fields and the command string.
	ToolInput map[string]any `json:"tool_input"`

	// SessionID identifies the agent session that raised the event.
	SessionID string `json:"session_id"`
}

// Decode reads a single event JSON document from r.
func Decode(r io.Reader) (*Event, error) {
	var ev Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("hookevent: decode event: %w", err)
	}
	return &ev, nil
}

// InputString returns the string value of a tool input field, or "" if the
// field is absent or not a string.
func (e *Event) InputString(key string) string {
	if e.ToolInput == nil {
		return ""
	}
	s, _ := e.ToolInput[key].(string)
	return s
}
