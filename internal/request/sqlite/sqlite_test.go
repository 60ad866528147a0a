package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/telegate/telegate/internal/request"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "approvals.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pending(id string, createdAt time.Time) request.Request {
	return request.Request{
		ID:        id,
		Tool:      "Bash",
		Input:     map[string]any{"command": "rm -rf /tmp/x"},
		Status:    request.StatusPending,
		CreatedAt: createdAt,
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	req := pending("abc12345-1700000000000", time.Now())
	if err := s.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("get: request not found")
	}
	if got.Status != request.StatusPending {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusPending)
	}
	if got.Tool != "Bash" {
		t.Errorf("tool: got %q, want %q", got.Tool, "Bash")
	}
	if cmd, _ := got.Input["command"].(string); cmd != "rm -rf /tmp/x" {
		t.Errorf("input command: got %q", cmd)
	}
}

func TestGetAbsent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	got, err := s.Get(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("get absent: unexpected error %v", err)
	}
	if got != nil {
		t.Errorf("get absent: got %+v, want nil", got)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	req := pending("r1", time.Now())
	if err := s.Create(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.Resolve(ctx, "r1", request.StatusDeny); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("get after resolve: %v, %v", got, err)
	}
	if got.Status != request.StatusDeny {
		t.Errorf("status: got %q, want %q", got.Status, request.StatusDeny)
	}
}

func TestResolveAbsentIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	// A late response for a request the waiter already deleted must not
	// resurrect anything.
	if err := s.Resolve(ctx, "gone", request.StatusAllow); err != nil {
		t.Fatalf("resolve absent: %v", err)
	}

	got, err := s.Get(ctx, "gone")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("resolve resurrected a deleted request: %+v", got)
	}
}

func TestResolveTwiceKeepsFirstDecision(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pending("r2", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Resolve(ctx, "r2", request.StatusDeny); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := s.Resolve(ctx, "r2", request.StatusAllow); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	got, _ := s.Get(ctx, "r2")
	if got == nil || got.Status != request.StatusDeny {
		t.Errorf("second resolve overwrote decision: %+v", got)
	}
}

func TestResolveRejectsNonTerminal(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if err := s.Resolve(context.Background(), "x", request.StatusPending); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pending("d1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "d1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(ctx, "d1"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for _, id := range []string{"l1", "l2", "l3"} {
		if err := s.Create(ctx, pending(id, now)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("list: got %d requests, want 3", len(all))
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	retention := 600 * time.Second
	now := time.Now()

	// One expired request (resolved — sweep ignores status), one fresh.
	expired := pending("old", now.Add(-retention-time.Second))
	expired.Status = request.StatusAllow
	if err := s.Create(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := s.Create(ctx, pending("fresh", now.Add(-retention+time.Second))); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	n, err := s.Sweep(ctx, retention)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("sweep: got %d deleted, want 1", n)
	}

	if got, _ := s.Get(ctx, "old"); got != nil {
		t.Error("expired request survived sweep")
	}
	if got, _ := s.Get(ctx, "fresh"); got == nil {
		t.Error("fresh request was swept")
	}
}

func TestCreateDuplicateIDFails(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, pending("dup", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, pending("dup", time.Now())); err == nil {
		t.Fatal("expected error creating duplicate ID")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "approvals.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open with missing parent: %v", err)
	}
	_ = s.Close()
}
