package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/telegate/telegate/internal/policy"
	"github.com/telegate/telegate/internal/request"
	"github.com/telegate/telegate/internal/request/sqlite"
	"github.com/telegate/telegate/internal/telegram"
)

// TestEndToEndDeny drives the full lifecycle against a real SQLite store
// and a fake Bot API: classify, create, notify, wait, external deny.
func TestEndToEndDeny(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	// Fake Bot API that acknowledges sendMessage and captures the keyboard.
	sent := make(chan telegram.SendMessageRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected method path: %s", r.URL.Path)
		}
		var req telegram.SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode sendMessage: %v", err)
		}
		sent <- req

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(telegram.APIResponse[telegram.Message]{
			OK:     true,
			Result: telegram.Message{MessageID: 1},
		})
	}))
	t.Cleanup(srv.Close)

	engine := policy.NewEngine(policy.Config{
		Rules: map[string]policy.Rule{
			"shell-command": {Patterns: []string{"rm", "sudo"}},
		},
	})
	notifier := NewTelegramNotifier(telegram.NewClient("1:T", srv.URL), 42)
	g := New(engine, store, notifier, testOptions(), testLogger())

	done := make(chan Verdict, 1)
	go func() {
		done <- g.Evaluate(context.Background(), "abc123def456", "shell-command",
			map[string]any{"command": "rm -rf /"})
	}()

	// The external responder: parse the correlation token off the deny
	// button and write the resolution into the shared store.
	msg := <-sent
	if msg.ChatID != 42 {
		t.Errorf("chat id: got %d, want 42", msg.ChatID)
	}
	if msg.ReplyMarkup == nil || len(msg.ReplyMarkup.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard: %+v", msg.ReplyMarkup)
	}
	denyButton := msg.ReplyMarkup.InlineKeyboard[0][1]
	id, decision, ok := telegram.ParseCallback(denyButton.CallbackData)
	if !ok || decision != telegram.DecisionDeny {
		t.Fatalf("deny button data: %q", denyButton.CallbackData)
	}
	if !strings.HasPrefix(id, "abc123de-") {
		t.Errorf("request id: got %q", id)
	}
	if err := store.Resolve(context.Background(), id, request.StatusDeny); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	v := <-done
	if v.Allow {
		t.Fatal("want deny verdict")
	}
	if v.Reason != DenyReason {
		t.Errorf("reason: got %q, want %q", v.Reason, DenyReason)
	}

	// The record must be gone, and a late duplicate response must stay a
	// no-op rather than resurrect it.
	if got, _ := store.Get(context.Background(), id); got != nil {
		t.Errorf("record still present after resolution: %+v", got)
	}
	if err := store.Resolve(context.Background(), id, request.StatusAllow); err != nil {
		t.Fatalf("late resolve: %v", err)
	}
	if got, _ := store.Get(context.Background(), id); got != nil {
		t.Error("late resolve resurrected the record")
	}
}

// TestEndToEndTimeout exercises the fail-open path with a real store.
func TestEndToEndTimeout(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	g := New(policy.NewEngine(policy.Default()), store, &stubNotifier{}, Options{
		PollInterval: 5 * time.Millisecond,
		WaitTimeout:  25 * time.Millisecond,
		Retention:    time.Minute,
	}, testLogger())

	start := time.Now()
	v := g.Evaluate(context.Background(), "abc123def456", "Bash",
		map[string]any{"command": "sudo rm -rf /"})

	if !v.Allow {
		t.Fatal("timeout must fail open")
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Error("evaluate returned before the wait timeout")
	}

	all, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("store not empty after timeout: %+v", all)
	}
}
