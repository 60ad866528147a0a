// Package request defines the durable approval-request record and the store
// contract that bridges the blocked gate process with the external responder.
package request

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of an approval request.
type Status string

const (
	// StatusPending means no human response has been recorded yet.
	StatusPending Status = "pending"

	// StatusAllow means the human approved the action.
	StatusAllow Status = "allow"

	// StatusDeny means the human rejected the action.
	StatusDeny Status = "deny"
)

// Terminal reports whether the status is a final human decision.
func (s Status) Terminal() bool {
	return s == StatusAllow || s == StatusDeny
}

// Request is one pending approval. It is created by the gate process,
// resolved by the responder process, and deleted by whichever side
// finishes with it first.
type Request struct {
	// ID is the storage key and the correlation token embedded in the
	// outbound notification.
	ID string

	// Tool is the classified action kind (e.g. "Bash", "Write").
	Tool string

	// Input carries the tool parameters verbatim, for display only.
	Input map[string]any

	// Status is the current lifecycle state.
	Status Status

	// CreatedAt drives both the wait deadline and the retention sweep.
	CreatedAt time.Time
}

// NewID derives a request ID from the session identifier and the current
// time: the first 8 bytes of the session plus unix milliseconds. The prefix
// never splits a multi-byte rune, so the ID stays valid UTF-8 wherever it
// surfaces (correlation tokens, message bodies). Collisions are treated as
// negligible.
func NewID(sessionID string, now time.Time) string {
	prefix := sessionID
	if len(prefix) > 8 {
		cut := 8
		for cut > 0 && !utf8.RuneStart(prefix[cut]) {
			cut--
		}
		prefix = prefix[:cut]
	}
	return fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
}

// Store persists approval requests. Implementations must be safe for
// concurrent use from multiple processes: a reader must never observe a
// partially written record.
type Store interface {
	// Create writes a new pending request. The gate treats a failure
	// here as "cannot gate" and fails open.
	Create(ctx context.Context, req Request) error

	// Get returns the request by ID, or (nil, nil) if it does not exist.
	// A read racing a concurrent delete is not an error.
	Get(ctx context.Context, id string) (*Request, error)

	// Resolve records a terminal human decision on a pending request.
	// It is a silent no-op if the request is absent or already resolved;
	// late or duplicate responses must not resurrect records.
	Resolve(ctx context.Context, id string, status Status) error

	// Delete removes a request. Deleting an absent request is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns all stored requests, for sweeping. Records may
	// disappear between listing and inspection.
	List(ctx context.Context) ([]Request, error)

	// Sweep deletes every request older than the retention window,
	// regardless of status, and returns how many were removed.
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}
