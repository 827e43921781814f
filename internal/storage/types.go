package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "" or "memory": in-process map
//   - "file": JSON snapshot + audit jsonl next to Path
//   - "sqlite": SQLite database file at Path
//   - "redis": RedisURL, keys prefixed with RedisKey
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	RedisURL    string
	RedisKey    string
}

// AuditEntry records one dispatch.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	RequestID string    `json:"request_id"`
	Action    string    `json:"action"` // send | delete
	ChatID    int64     `json:"chat_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	StateKey  string    `json:"state_key,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Store is the persistence API used by the registry and the dispatcher.
// LoadSlots/SaveSlots satisfy state.Store.
type Store interface {
	LoadSlots(ctx context.Context) (map[string]int, error)
	SaveSlots(ctx context.Context, slots map[string]int) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	// PruneAudit drops entries recorded before the cutoff and reports how many went.
	PruneAudit(ctx context.Context, before time.Time) (int, error)

	Close() error
}
