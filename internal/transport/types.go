package transport

import (
	"context"
	"errors"

	"tgrelay/internal/request"
)

// ErrFileMissing is returned when a local media file vanished between resolution and send.
var ErrFileMissing = errors.New("media file is missing")

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// MessageTransport performs the wire calls for one bot. Implementations must be safe for concurrent use.
type MessageTransport interface {
	Send(ctx context.Context, req *request.SendRequest) (MessageRef, error)
	Delete(ctx context.Context, chatID int64, messageID int) error
}
