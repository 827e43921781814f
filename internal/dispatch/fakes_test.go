package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tgrelay/internal/request"
	"tgrelay/internal/state"
	"tgrelay/internal/storage"
	kit "tgrelay/internal/transport"
)

// fakeTransport records calls in order. Message ids start at 42.
type fakeTransport struct {
	mu        sync.Mutex
	calls     []string
	nextID    int
	sendErr   error
	deleteErr error
	panicMsg  string
	delay     time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeTransport() *fakeTransport { return &fakeTransport{nextID: 42} }

func (f *fakeTransport) enter() func() {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeTransport) Send(ctx context.Context, req *request.SendRequest) (kit.MessageRef, error) {
	defer f.enter()()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "send:"+req.Kind.String())
	if f.sendErr != nil {
		return kit.MessageRef{}, f.sendErr
	}
	id := f.nextID
	f.nextID++
	return kit.MessageRef{ChatID: req.ChatID, ThreadID: req.TopicID, MessageID: id}, nil
}

func (f *fakeTransport) Delete(ctx context.Context, chatID int64, messageID int) error {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("delete:%d:%d", chatID, messageID))
	return f.deleteErr
}

func (f *fakeTransport) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeNotifier captures everything the gate reports.
type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errs   []string
	notifs []string
}

func (n *fakeNotifier) Info(msg string)   { n.add(&n.infos, msg) }
func (n *fakeNotifier) Warn(msg string)   { n.add(&n.warns, msg) }
func (n *fakeNotifier) Error(msg string)  { n.add(&n.errs, msg) }
func (n *fakeNotifier) Notify(msg string) { n.add(&n.notifs, msg) }

func (n *fakeNotifier) add(dst *[]string, msg string) {
	n.mu.Lock()
	*dst = append(*dst, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) snapshot() (infos, warns, errs, notifs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.infos...), append([]string(nil), n.warns...),
		append([]string(nil), n.errs...), append([]string(nil), n.notifs...)
}

func containsSub(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// failingStore loads fine and fails every save.
type failingStore struct{}

func (failingStore) LoadSlots(context.Context) (map[string]int, error) { return map[string]int{}, nil }
func (failingStore) SaveSlots(context.Context, map[string]int) error {
	return errors.New("disk full")
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (a *recordingAuditor) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	return nil
}

func newRegistry(t *testing.T) *state.Registry {
	t.Helper()
	reg, err := state.Open(context.Background(), storage.NewMemory())
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	return reg
}

func args(kv map[string]any) request.Args { return request.NewArgs(kv) }

func openFailingRegistry() (*state.Registry, error) {
	return state.Open(context.Background(), failingStore{})
}
