// Package gate implements the synchronous approval checkpoint: classify the
// action, record a pending request, alert a human, and block until the
// request resolves or the wait times out.
//
// Every failure on the critical path resolves to an allow verdict. A broken
// approval channel must never stall the calling agent; deny is only ever
// reached through an observed human response. This asymmetry is the gate's
// central contract.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/telegate/telegate/internal/policy"
	"github.com/telegate/telegate/internal/request"
)

// DenyReason is the machine-readable reason attached to a deny verdict.
const DenyReason = "user denied"

// Notifier delivers an approval prompt with allow/deny affordances to a
// human. It records nothing; delivery is attempted once per request.
type Notifier interface {
	Notify(ctx context.Context, req request.Request) error
}

// Verdict is the gate's answer for one action.
type Verdict struct {
	// Allow reports whether the caller may proceed.
	Allow bool

	// Reason is set when the action is denied.
	Reason string
}

// Options are the lifecycle timings, all pre-validated by config.
type Options struct {
	// PollInterval is the delay between reads while waiting.
	PollInterval time.Duration

	// WaitTimeout bounds the wait; on expiry the gate fails open.
	WaitTimeout time.Duration

	// Retention is the reaper's cutoff for stale records.
	Retention time.Duration
}

// Gate composes the decision engine, the request store, and the notifier
// into one blocking evaluation per candidate action.
type Gate struct {
	engine   *policy.Engine
	store    request.Store
	notifier Notifier
	opts     Options
	logger   *slog.Logger
	now      func() time.Time // injectable for testing
}

// New creates a Gate.
func New(engine *policy.Engine, store request.Store, notifier Notifier, opts Options, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		engine:   engine,
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Evaluate runs the full approval lifecycle for one action and blocks the
// caller until a verdict is reached. It never returns an error: anything
// that prevents gating resolves to allow.
func (g *Gate) Evaluate(ctx context.Context, sessionID, tool string, input map[string]any) Verdict {
	pattern, confirm := g.engine.Match(tool, input)
	if !confirm {
		return Verdict{Allow: true}
	}

	g.logger.Info("approval required",
		"tool", tool,
		"pattern", pattern,
		"session", sessionID,
	)

	// Opportunistic housekeeping before adding a new record.
	if n, err := g.store.Sweep(ctx, g.opts.Retention); err != nil {
		g.logger.Warn("retention sweep failed", "error", err)
	} else if n > 0 {
		g.logger.Debug("swept stale requests", "count", n)
	}

	req := request.Request{
		ID:        request.NewID(sessionID, g.now()),
		Tool:      tool,
		Input:     input,
		Status:    request.StatusPending,
		CreatedAt: g.now(),
	}

	if err := g.store.Create(ctx, req); err != nil {
		// Cannot track the request, so it cannot be gated.
		g.logger.Error("create request failed, allowing", "id", req.ID, "error", err)
		return Verdict{Allow: true}
	}

	if err := g.notifier.Notify(ctx, req); err != nil {
		// Nobody was notified; waiting would only burn the timeout.
		// The record is left for the reaper.
		g.logger.Error("notify failed, allowing", "id", req.ID, "error", err)
		return Verdict{Allow: true}
	}

	status := g.wait(ctx, req.ID)
	if status == request.StatusDeny {
		g.logger.Info("request denied", "id", req.ID)
		return Verdict{Reason: DenyReason}
	}

	return Verdict{Allow: true}
}

// wait polls the store until the request reaches a terminal status or the
// wait timeout elapses. Either way the record is deleted before returning;
// this is the single authoritative cleanup on the normal path. A timeout
// resolves as allow.
func (g *Gate) wait(ctx context.Context, id string) request.Status {
	deadline := g.now().Add(g.opts.WaitTimeout)

	for g.now().Before(deadline) {
		time.Sleep(g.opts.PollInterval)

		req, err := g.store.Get(ctx, id)
		if err != nil {
			// Transient read failure: treat as still pending.
			g.logger.Debug("poll read failed", "id", id, "error", err)
			continue
		}
		if req == nil {
			// Record not visible (or already swept): keep polling
			// until the deadline decides.
			continue
		}

		if req.Status.Terminal() {
			if err := g.store.Delete(ctx, id); err != nil {
				g.logger.Warn("delete resolved request failed", "id", id, "error", err)
			}
			return req.Status
		}
	}

	g.logger.Info("approval wait timed out, allowing", "id", id)
	if err := g.store.Delete(ctx, id); err != nil {
		g.logger.Warn("delete timed-out request failed", "id", id, "error", err)
	}
	return request.StatusAllow
}
