package dispatch

import (
	"context"
	"time"

	"tgrelay/internal/storage"
)

// Notifier receives log lines and user-facing notifications. Calls are fire-and-forget.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Notify(msg string)
}

// Auditor records finished dispatches. storage.Store satisfies it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusConfigError Status = "config_error"
	StatusFailed      Status = "failed"
	StatusCritical    Status = "critical"
)

const (
	ActionSend   = "send"
	ActionDelete = "delete"
)

// User-facing notification texts.
const (
	msgSent         = "Message sent successfully"
	msgDeleted      = "Messages deleted"
	prefixConfig    = "Config Error: "
	prefixExecution = "Execution Error: "
	prefixCritical  = "Critical Error: "
)

// Outcome is what a host sees for one Execute call.
type Outcome struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Status    Status `json:"status"`
	ChatID    int64  `json:"chat_id,omitempty"`
	TopicID   int    `json:"topic_id,omitempty"`
	StateKey  string `json:"state_key,omitempty"`
	MessageID int    `json:"message_id,omitempty"`
	Deleted   int    `json:"deleted,omitempty"`
	Message   string `json:"message,omitempty"`
	Warning   string `json:"warning,omitempty"`

	Took time.Duration `json:"-"`
}

func (o Outcome) OK() bool { return o.Status == StatusOK }

// Response is the orchestrator's success value.
type Response struct {
	MessageID int
	// Deleted counts registry entries retracted before the send (or by a delete call).
	Deleted int
}
