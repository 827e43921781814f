package dispatch

import (
	"context"
	"sort"

	"tgrelay/internal/request"
	"tgrelay/internal/result"
	"tgrelay/internal/state"
	kit "tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

// Orchestrator sequences retract-then-send for one transport.
// It is not safe for concurrent use on its own; the Gate serializes calls.
type Orchestrator struct {
	tr  kit.MessageTransport
	reg *state.Registry
	log logx.Logger
}

func NewOrchestrator(tr kit.MessageTransport, reg *state.Registry, log logx.Logger) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{tr: tr, reg: reg, log: log}
}

// ProcessSend retracts what req asks to replace, then sends. A rejected send
// is a failure result and leaves the registry as the retraction left it.
// The error return is reserved for registry persistence failures.
func (o *Orchestrator) ProcessSend(ctx context.Context, req *request.SendRequest) (result.Result[Response], error) {
	deleted, err := o.retract(ctx, req.ChatID, req.TopicID, req.StateKey, req.DeleteAll, req.ReplacePrevious)
	if err != nil {
		return result.Result[Response]{}, err
	}

	ref, err := o.tr.Send(ctx, req)
	if err != nil {
		return result.Failure[Response](err.Error()), nil
	}

	if req.StateKey != "" {
		if err := o.reg.Set(ctx, req.ChatID, req.TopicID, req.StateKey, ref.MessageID); err != nil {
			return result.Result[Response]{}, err
		}
	}
	return result.Success(Response{MessageID: ref.MessageID, Deleted: deleted}), nil
}

// ProcessDelete runs the same retraction as ProcessSend without sending.
func (o *Orchestrator) ProcessDelete(ctx context.Context, req *request.DeleteRequest) (result.Result[Response], error) {
	deleted, err := o.retract(ctx, req.ChatID, req.TopicID, req.StateKey, req.DeleteAll, true)
	if err != nil {
		return result.Result[Response]{}, err
	}
	return result.Success(Response{Deleted: deleted}), nil
}

// retract deletes every tracked message of the chat (all) or the one in the
// slot (byKey). Telegram-side delete failures never stop the flow.
func (o *Orchestrator) retract(ctx context.Context, chatID int64, topicID int, key string, all, byKey bool) (int, error) {
	switch {
	case all:
		slots := o.reg.AllForChat(chatID)
		if len(slots) == 0 {
			return 0, nil
		}
		keys := make([]string, 0, len(slots))
		for k := range slots {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			o.deleteQuiet(ctx, chatID, slots[k], k)
		}
		if err := o.reg.ClearForChat(ctx, chatID); err != nil {
			return 0, err
		}
		return len(slots), nil

	case byKey && key != "":
		id, ok := o.reg.Get(chatID, topicID, key)
		if !ok {
			return 0, nil
		}
		o.deleteQuiet(ctx, chatID, id, state.CompositeKey(chatID, topicID, key))
		if err := o.reg.Remove(ctx, chatID, topicID, key); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, nil
}

func (o *Orchestrator) deleteQuiet(ctx context.Context, chatID int64, messageID int, slot string) {
	if err := o.tr.Delete(ctx, chatID, messageID); err != nil {
		o.log.Warn("delete failed, continuing",
			logx.Int64("chat_id", chatID),
			logx.Int("message_id", messageID),
			logx.String("slot", slot),
			logx.Err(err),
		)
	}
}
