package listener

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telegate/telegate/internal/metrics"
	"github.com/telegate/telegate/internal/telegram"
)

// maxWebhookBody bounds the update payload size.
const maxWebhookBody = 1 << 20

// WebhookReceiver processes incoming Telegram webhook payloads.
type WebhookReceiver struct {
	resolver *Resolver
	logger   *slog.Logger
	secret   string
}

// NewWebhookReceiver creates a WebhookReceiver. The secret, if non-empty,
// is matched against Telegram's X-Telegram-Bot-Api-Secret-Token header.
func NewWebhookReceiver(resolver *Resolver, logger *slog.Logger, secret string) *WebhookReceiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookReceiver{resolver: resolver, logger: logger, secret: secret}
}

// ServeHTTP implements http.Handler for POST /webhooks/telegram.
func (w *WebhookReceiver) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if w.secret != "" {
		token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			http.Error(rw, "invalid secret token", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "failed to read body", http.StatusBadRequest)
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(body, &update); err != nil {
		http.Error(rw, "invalid update JSON", http.StatusBadRequest)
		return
	}

	w.resolver.HandleUpdate(r.Context(), &update)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte(`{"ok":true}`))
}

// buildRouter constructs the chi mux for the daemon's HTTP surface.
// The webhook route is mounted only in webhook mode.
func buildRouter(receiver *WebhookReceiver, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	if receiver != nil {
		r.Post("/webhooks/telegram", receiver.ServeHTTP)
	}

	return r
}
