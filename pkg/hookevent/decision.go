package hookevent

import (
	"encoding/json"
	"fmt"
	"io"
)

// Exit codes understood by the agent runtime.
const (
	// ExitAllow lets the tool execution proceed.
	ExitAllow = 0

	// ExitDeny blocks the tool execution. The runtime expects a Decision
	// document on stdout explaining why.
	ExitDeny = 2
)

// DecisionBlock is the decision value that blocks a tool execution.
const DecisionBlock = "block"

// Decision is the document written to stdout when the gate denies an action.
type Decision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// WriteBlock writes a block decision with the given reason to w.
func WriteBlock(w io.Writer, reason string) error {
	doc := Decision{Decision: DecisionBlock, Reason: reason}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("hookevent: encode decision: %w", err)
	}
	return nil
}
