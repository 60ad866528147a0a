// Package listener implements the responder daemon: it receives Telegram
// callback queries (long poll or webhook), maps correlation tokens back to
// pending approval requests, and writes resolutions into the shared store
// for the blocked gate process to observe.
package listener

import (
	"context"
	"log/slog"

	"github.com/telegate/telegate/internal/metrics"
	"github.com/telegate/telegate/internal/request"
	"github.com/telegate/telegate/internal/telegram"
)

// Resolver turns one inbound update into a store resolution.
type Resolver struct {
	store   request.Store
	client  *telegram.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store request.Store, client *telegram.Client, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, client: client, metrics: m, logger: logger}
}

// HandleUpdate processes a single update. Non-callback updates and tokens
// from other namespaces are skipped. All Telegram feedback (answering the
// callback, editing the prompt) is best-effort: the store write is the only
// thing the gate depends on.
func (r *Resolver) HandleUpdate(ctx context.Context, update *telegram.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		r.logger.Debug("skipping non-callback update", "update_id", update.UpdateID)
		return
	}

	id, decision, ok := telegram.ParseCallback(cb.Data)
	if !ok {
		r.logger.Debug("skipping foreign callback", "update_id", update.UpdateID, "data", cb.Data)
		return
	}

	existing, err := r.store.Get(ctx, id)
	if err != nil {
		r.logger.Error("read request failed", "id", id, "error", err)
		r.answer(ctx, cb.ID, "Something went wrong, try again")
		return
	}
	if existing == nil || existing.Status != request.StatusPending {
		// Late tap: the waiter timed out or the reaper collected it.
		r.metrics.UnmatchedCallbacks.Inc()
		r.logger.Info("callback for expired request", "id", id, "decision", decision)
		r.answer(ctx, cb.ID, "Request expired")
		return
	}

	status := request.StatusAllow
	if decision == telegram.DecisionDeny {
		status = request.StatusDeny
	}

	if err := r.store.Resolve(ctx, id, status); err != nil {
		r.logger.Error("resolve request failed", "id", id, "error", err)
		r.answer(ctx, cb.ID, "Something went wrong, try again")
		return
	}

	r.metrics.Resolutions.WithLabelValues(decision).Inc()
	r.logger.Info("request resolved",
		"id", id,
		"decision", decision,
		"by", cb.From.Username,
	)

	feedback := "Allowed ✅"
	if status == request.StatusDeny {
		feedback = "Denied ❌"
	}
	r.answer(ctx, cb.ID, feedback)

	// Replace the keyboard with the outcome so the prompt can't be
	// tapped twice.
	if cb.Message != nil {
		_, err := r.client.EditMessageText(ctx, telegram.EditMessageTextRequest{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Text:      telegram.FormatResolved(cb.Message.Text, decision),
			ParseMode: "HTML",
		})
		if err != nil {
			r.logger.Warn("edit prompt failed", "id", id, "error", err)
		}
	}
}

func (r *Resolver) answer(ctx context.Context, callbackID, text string) {
	err := r.client.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		r.logger.Warn("answer callback failed", "error", err)
	}
}
