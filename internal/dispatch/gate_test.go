package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tgrelay/internal/request"
	logx "tgrelay/pkg/logx"
)

func newTestGate(t *testing.T, tr *fakeTransport, opts ...Option) (*Gate, *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{}
	return NewGate(NewOrchestrator(tr, newRegistry(t), logx.Nop()), n, opts...), n
}

func TestExecuteSendHelloNotifiesSuccess(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	g, n := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), args(map[string]any{
		"tg_chat_id": 123, "tg_text": "Hello", "tg_notification": true,
	}))
	if out.Status != StatusOK || out.MessageID != 42 {
		t.Fatalf("outcome = %+v", out)
	}
	_, _, errs, notifs := n.snapshot()
	if !containsSub(notifs, "success") {
		t.Fatalf("notifications %v lack success", notifs)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if l := g.orch.reg.Len(); l != 0 {
		t.Fatalf("registry changed without slot key: %d", l)
	}
	if out.RequestID == "" {
		t.Fatalf("request id missing")
	}
}

func TestExecuteSendNotificationDisabled(t *testing.T) {
	t.Parallel()
	g, n := newTestGate(t, newFakeTransport())

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": "5", "tg_text": "x", "tg_notification": "false"}))
	if !out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	if _, _, _, notifs := n.snapshot(); len(notifs) != 0 {
		t.Fatalf("notifications should be suppressed: %v", notifs)
	}
}

func TestExecuteSendFailureAlwaysNotifies(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.sendErr = errors.New("Forbidden: bot was blocked by the user")
	g, n := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": 5, "tg_text": "x", "tg_notification": false}))
	if out.Status != StatusFailed {
		t.Fatalf("status = %s", out.Status)
	}
	_, _, errs, notifs := n.snapshot()
	if len(errs) != 1 || errs[0] != "Execution Error: Forbidden: bot was blocked by the user" {
		t.Fatalf("errors = %v", errs)
	}
	if len(notifs) != 1 || notifs[0] != "Execution Error: Forbidden: bot was blocked by the user" {
		t.Fatalf("notifications = %v", notifs)
	}
}

func TestExecuteSendConfigError(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	g, n := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": "not-a-number", "tg_text": "x"}))
	if out.Status != StatusConfigError {
		t.Fatalf("status = %s", out.Status)
	}
	if len(tr.callLog()) != 0 {
		t.Fatalf("transport must not be called on config error")
	}
	_, _, errs, notifs := n.snapshot()
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "Config Error: ") {
		t.Fatalf("errors = %v", errs)
	}
	if len(notifs) != 1 || notifs[0] != errs[0] {
		t.Fatalf("notifications = %v", notifs)
	}
}

func TestExecuteSendDeletesSourceFileOnlyOnSuccess(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		file     string
		hint     string
		sendErr  error
		wantGone bool
		wantCall string
	}{
		{"success removes file", "clip.png", "", nil, true, "send:photo"},
		{"failure keeps file", "clip.png", "", errors.New("Bad Request: wrong file"), false, "send:photo"},
		{"degraded to text keeps file", "notes.txt", "", nil, false, "send:text"},
		{"text hint keeps file", "clip.png", "text", nil, false, "send:text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			tr := newFakeTransport()
			tr.sendErr = tt.sendErr
			g, _ := newTestGate(t, tr)

			bag := map[string]any{"tg_chat_id": 1, "tg_text": "caption", "tg_media_path": path, "tg_delete_file": true}
			if tt.hint != "" {
				bag["tg_media_type"] = tt.hint
			}
			g.ExecuteSend(context.Background(), args(bag))

			_, err := os.Stat(path)
			gone := os.IsNotExist(err)
			if gone != tt.wantGone {
				t.Fatalf("file gone = %v, want %v", gone, tt.wantGone)
			}
			if calls := tr.callLog(); len(calls) != 1 || calls[0] != tt.wantCall {
				t.Fatalf("calls = %v, want [%s]", calls, tt.wantCall)
			}
		})
	}
}

func TestExecuteSendAcceptsLiteralMixedCaseBag(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	g, _ := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), request.Args{"TG_Chat_ID": 123, "tg_text": "hi", "TG_NOTIFICATION": false})
	if out.Status != StatusOK || out.ChatID != 123 {
		t.Fatalf("outcome = %+v", out)
	}
	if calls := tr.callLog(); len(calls) != 1 || calls[0] != "send:text" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestExecuteSendFileDeleteFailureIsWarning(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, n := newTestGate(t, newFakeTransport())
	g.cfg.removeFile = func(string) error { return errors.New("permission denied") }

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": 1, "tg_media_path": path, "tg_delete_file": "1"}))
	if !out.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	_, warns, errs, _ := n.snapshot()
	if !containsSub(warns, "permission denied") || len(errs) != 0 {
		t.Fatalf("warns=%v errs=%v", warns, errs)
	}
}

func TestExecuteSendResolutionWarning(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	g, n := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), args(map[string]any{
		"tg_chat_id": 1, "tg_text": "hi", "tg_media_path": filepath.Join(t.TempDir(), "missing.png"),
	}))
	if !out.OK() || out.Warning == "" {
		t.Fatalf("outcome = %+v", out)
	}
	if calls := tr.callLog(); len(calls) != 1 || calls[0] != "send:text" {
		t.Fatalf("calls = %v", calls)
	}
	if _, warns, _, _ := n.snapshot(); len(warns) != 1 {
		t.Fatalf("warns = %v", warns)
	}
}

func TestExecuteSendPanicIsCriticalAndReleasesGate(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.panicMsg = "boom"
	g, n := newTestGate(t, tr)

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": 1, "tg_text": "x"}))
	if out.Status != StatusCritical || !strings.HasPrefix(out.Message, "Critical Error: ") {
		t.Fatalf("outcome = %+v", out)
	}
	_, _, errs, notifs := n.snapshot()
	if len(errs) != 1 || len(notifs) != 1 {
		t.Fatalf("errs=%v notifs=%v", errs, notifs)
	}

	tr.panicMsg = ""
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if out := g.ExecuteSend(ctx, args(map[string]any{"tg_chat_id": 1, "tg_text": "x"})); !out.OK() {
		t.Fatalf("gate not released after panic: %+v", out)
	}
}

func TestExecuteSendPersistenceFailureIsCritical(t *testing.T) {
	t.Parallel()
	reg, err := openFailingRegistry()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	n := &fakeNotifier{}
	g := NewGate(NewOrchestrator(newFakeTransport(), reg, logx.Nop()), n)

	out := g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": 1, "tg_text": "x", "tg_state_key": "k"}))
	if out.Status != StatusCritical || !strings.Contains(out.Message, "disk full") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestGateSerializesCalls(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	tr.delay = 5 * time.Millisecond
	g, _ := newTestGate(t, tr)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.ExecuteSend(context.Background(), args(map[string]any{"tg_chat_id": 1, "tg_text": "x", "tg_state_key": "s", "tg_delete_prev": true}))
		}()
	}
	wg.Wait()

	if m := tr.maxInFlight.Load(); m != 1 {
		t.Fatalf("max concurrent transport calls = %d, want 1", m)
	}
	if l := g.orch.reg.Len(); l != 1 {
		t.Fatalf("registry holds %d entries for one slot", l)
	}
}

func TestGateWaitHonoursContext(t *testing.T) {
	t.Parallel()
	g, _ := newTestGate(t, newFakeTransport())
	if err := g.slot.acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer g.slot.release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := g.ExecuteSend(ctx, args(map[string]any{"tg_chat_id": 1, "tg_text": "x"}))
	if out.Status != StatusFailed || !strings.Contains(out.Message, "deadline exceeded") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestExecuteDelete(t *testing.T) {
	t.Parallel()
	tr := newFakeTransport()
	g, n := newTestGate(t, tr)
	ctx := context.Background()

	g.ExecuteSend(ctx, args(map[string]any{"tg_chat_id": 3, "tg_text": "x", "tg_state_key": "menu", "tg_notification": false}))
	out := g.ExecuteDelete(ctx, args(map[string]any{"tg_chat_id": 3, "tg_state_key": "menu"}))
	if !out.OK() || out.Deleted != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if _, _, _, notifs := n.snapshot(); len(notifs) != 1 || notifs[0] != "Messages deleted" {
		t.Fatalf("notifications = %v", notifs)
	}

	out = g.ExecuteDelete(ctx, args(map[string]any{"tg_chat_id": 3}))
	if out.Status != StatusConfigError {
		t.Fatalf("status = %s", out.Status)
	}
}

func TestAuditAndObserver(t *testing.T) {
	t.Parallel()
	aud := &recordingAuditor{}
	var (
		mu   sync.Mutex
		seen []Outcome
	)
	g, _ := newTestGate(t, newFakeTransport(),
		WithAuditor(aud),
		WithObserver(func(o Outcome) { mu.Lock(); seen = append(seen, o); mu.Unlock() }),
	)
	ctx := context.Background()
	ok := g.ExecuteSend(ctx, args(map[string]any{"tg_chat_id": 8, "tg_text": "x"}))
	bad := g.ExecuteSend(ctx, args(map[string]any{"tg_text": "x"}))

	if len(aud.entries) != 2 {
		t.Fatalf("audit entries = %d", len(aud.entries))
	}
	if aud.entries[0].RequestID != ok.RequestID || aud.entries[0].Status != "ok" || aud.entries[0].MessageID != 42 {
		t.Fatalf("first entry = %+v", aud.entries[0])
	}
	if aud.entries[1].Status != "config_error" || aud.entries[1].Error != bad.Message {
		t.Fatalf("second entry = %+v", aud.entries[1])
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[1].Status != StatusConfigError {
		t.Fatalf("observed = %+v", seen)
	}
}
