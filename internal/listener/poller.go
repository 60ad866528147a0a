package listener

import (
	"context"
	"log/slog"
	"time"

	"github.com/telegate/telegate/internal/telegram"
)

const (
	maxConsecutivePollingErrors = 5
	errorPauseDuration          = 30 * time.Second
)

// Poller receives updates via getUpdates long polling. Only callback
// queries are requested from the API.
type Poller struct {
	client         *telegram.Client
	resolver       *Resolver
	logger         *slog.Logger
	pollingTimeout int
}

// NewPoller creates a Poller.
func NewPoller(client *telegram.Client, resolver *Resolver, logger *slog.Logger, pollingTimeout int) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:         client,
		resolver:       resolver,
		logger:         logger,
		pollingTimeout: pollingTimeout,
	}
}

// Run polls until ctx is cancelled. After too many consecutive errors the
// loop pauses before resuming, so a broken network or revoked token does
// not turn into a hot loop.
func (p *Poller) Run(ctx context.Context) {
	var offset int
	var consecutiveErrors int

	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := p.client.GetUpdates(ctx, telegram.GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.pollingTimeout,
			AllowedUpdates: []string{"callback_query"},
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			consecutiveErrors++
			p.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn("polling paused after consecutive errors",
					"pause", errorPauseDuration,
				)
				select {
				case <-ctx.Done():
					return
				case <-time.After(errorPauseDuration):
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0

		for _, update := range updates {
			offset = update.UpdateID + 1
			p.resolver.HandleUpdate(ctx, &update)
		}
	}
}
