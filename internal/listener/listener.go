package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/telegate/telegate/internal/config"
	"github.com/telegate/telegate/internal/metrics"
	"github.com/telegate/telegate/internal/request"
	"github.com/telegate/telegate/internal/telegram"
)

const sweepSchedule = "@every 1m"

// Listener is the responder daemon. It owns the inbound update transport
// (long poll or webhook), the periodic retention sweep, and the HTTP
// surface for health and metrics.
type Listener struct {
	cfg     *config.Config
	store   request.Store
	client  *telegram.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Listener.
func New(cfg *config.Config, store request.Store, client *telegram.Client, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cfg:     cfg,
		store:   store,
		client:  client,
		metrics: metrics.New(),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled. It verifies the bot credentials,
// starts the sweep schedule and the HTTP server, and runs the configured
// update transport.
func (l *Listener) Run(ctx context.Context) error {
	me, err := l.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("listener: verify bot credentials: %w", err)
	}
	l.logger.Info("bot authenticated", "username", me.Username, "id", me.ID)

	resolver := NewResolver(l.store, l.client, l.metrics, l.logger)

	// Periodic retention sweep. The gate also sweeps opportunistically on
	// every run; this schedule covers quiet periods with no new requests.
	sched := cron.New()
	var sweepLock sync.Mutex
	_, err = sched.AddFunc(sweepSchedule, func() {
		// If the previous sweep is still running, skip this tick.
		if !sweepLock.TryLock() {
			l.logger.Warn("sweep still running, skipping tick")
			return
		}
		defer sweepLock.Unlock()

		n, err := l.store.Sweep(ctx, l.cfg.Gate.Retention)
		if err != nil {
			l.logger.Error("retention sweep failed", "error", err)
			return
		}
		if n > 0 {
			l.metrics.SweptRequests.Add(float64(n))
			l.logger.Info("swept stale requests", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("listener: register sweep job: %w", err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	webhookMode := l.cfg.Telegram.Mode == "webhook"

	var receiver *WebhookReceiver
	if webhookMode {
		receiver = NewWebhookReceiver(resolver, l.logger, l.cfg.Telegram.WebhookSecret)
		err := l.client.SetWebhook(ctx, telegram.SetWebhookRequest{
			URL:            l.cfg.Telegram.WebhookURL,
			SecretToken:    l.cfg.Telegram.WebhookSecret,
			AllowedUpdates: []string{"callback_query"},
		})
		if err != nil {
			return fmt.Errorf("listener: set webhook: %w", err)
		}
	} else {
		// getUpdates conflicts with an active webhook.
		if err := l.client.DeleteWebhook(ctx); err != nil {
			l.logger.Warn("delete webhook failed", "error", err)
		}
	}

	srv := &http.Server{
		Addr:              l.cfg.Telegram.ListenAddr,
		Handler:           buildRouter(receiver, l.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.logger.Info("http server listening", "addr", srv.Addr, "webhook", webhookMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if !webhookMode {
		poller := NewPoller(l.client, resolver, l.logger, l.cfg.Telegram.PollingTimeout)
		go poller.Run(ctx)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("listener: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.logger.Warn("http shutdown failed", "error", err)
	}

	l.logger.Info("listener stopped")
	return nil
}
