package dispatch

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tgrelay/internal/request"
	"tgrelay/internal/result"
	"tgrelay/internal/storage"
	logx "tgrelay/pkg/logx"
)

// slot is a one-token channel semaphore. Waiters are admitted in arrival order.
type slot struct {
	ch chan struct{}
}

func newSlot() *slot {
	s := &slot{ch: make(chan struct{}, 1)}
	s.ch <- struct{}{}
	return s
}

func (s *slot) acquire(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slot) release() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Option configures a Gate or a Pool.
type Option func(*settings)

type settings struct {
	log        logx.Logger
	resolver   *request.Resolver
	audit      Auditor
	observe    func(Outcome)
	removeFile func(string) error
}

func WithLogger(l logx.Logger) Option { return func(s *settings) { s.log = l } }

func WithResolver(r *request.Resolver) Option { return func(s *settings) { s.resolver = r } }

// WithAuditor records every outcome, including config errors.
func WithAuditor(a Auditor) Option { return func(s *settings) { s.audit = a } }

// WithObserver is called once per finished Execute call.
func WithObserver(fn func(Outcome)) Option { return func(s *settings) { s.observe = fn } }

func newSettings(opts []Option) settings {
	s := settings{removeFile: os.Remove}
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.resolver == nil {
		s.resolver = request.NewResolver()
	}
	return s
}

// Gate admits one send or delete at a time for one destination context.
type Gate struct {
	slot   *slot
	orch   *Orchestrator
	notify Notifier
	cfg    settings
}

func NewGate(orch *Orchestrator, notify Notifier, opts ...Option) *Gate {
	return newGate(orch, notify, newSettings(opts))
}

func newGate(orch *Orchestrator, notify Notifier, cfg settings) *Gate {
	return &Gate{slot: newSlot(), orch: orch, notify: notify, cfg: cfg}
}

// ExecuteSend validates args, then sends under the gate.
func (g *Gate) ExecuteSend(ctx context.Context, args request.Args) Outcome {
	start := time.Now()
	out := Outcome{RequestID: uuid.NewString(), Action: ActionSend}

	parsed := g.cfg.resolver.ParseSend(args)
	if !parsed.OK {
		return g.cfg.finish(ctx, g.notify, configError(out, parsed.Err), start)
	}
	req := parsed.Value
	out.ChatID, out.TopicID, out.StateKey = req.ChatID, req.TopicID, req.StateKey

	res, err := g.run(ctx, out, func() (result.Result[Response], error) {
		return g.orch.ProcessSend(ctx, req)
	})
	switch {
	case err != nil:
		out = g.critical(out, err)
	case !res.OK:
		out = g.failed(out, res.Err)
	default:
		out.Status = StatusOK
		out.MessageID = res.Value.MessageID
		out.Deleted = res.Value.Deleted
		out.Message = msgSent
		out.Warning = req.Warning

		g.notify.Info("Message " + strconv.Itoa(out.MessageID) + " sent to chat " + strconv.FormatInt(req.ChatID, 10))
		if req.Warning != "" {
			g.notify.Warn(req.Warning)
		}
		if req.Notify {
			g.notify.Notify(msgSent)
		}
		if req.DeleteFile {
			g.removeSource(req)
		}
	}
	return g.cfg.finish(ctx, g.notify, out, start)
}

// ExecuteDelete validates args, then retracts under the gate.
func (g *Gate) ExecuteDelete(ctx context.Context, args request.Args) Outcome {
	start := time.Now()
	out := Outcome{RequestID: uuid.NewString(), Action: ActionDelete}

	parsed := g.cfg.resolver.ParseDelete(args)
	if !parsed.OK {
		return g.cfg.finish(ctx, g.notify, configError(out, parsed.Err), start)
	}
	req := parsed.Value
	out.ChatID, out.TopicID, out.StateKey = req.ChatID, req.TopicID, req.StateKey

	res, err := g.run(ctx, out, func() (result.Result[Response], error) {
		return g.orch.ProcessDelete(ctx, req)
	})
	switch {
	case err != nil:
		out = g.critical(out, err)
	case !res.OK:
		out = g.failed(out, res.Err)
	default:
		out.Status = StatusOK
		out.Deleted = res.Value.Deleted
		out.Message = msgDeleted

		g.notify.Info("Deleted " + strconv.Itoa(out.Deleted) + " message(s) in chat " + strconv.FormatInt(req.ChatID, 10))
		if req.Notify {
			g.notify.Notify(msgDeleted)
		}
	}
	return g.cfg.finish(ctx, g.notify, out, start)
}

// run holds the gate for fn. A panic in fn becomes an error; the gate is
// released on every path.
func (g *Gate) run(ctx context.Context, out Outcome, fn func() (result.Result[Response], error)) (res result.Result[Response], err error) {
	if err := g.slot.acquire(ctx); err != nil {
		return result.Failure[Response]("gate wait: " + err.Error()), nil
	}
	defer g.slot.release()
	defer func() {
		if r := recover(); r != nil {
			g.cfg.log.Error("dispatch panic recovered",
				logx.String("request_id", out.RequestID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func (g *Gate) failed(out Outcome, msg string) Outcome {
	out.Status = StatusFailed
	out.Message = prefixExecution + msg
	g.notify.Error(out.Message)
	g.notify.Notify(out.Message)
	return out
}

func (g *Gate) critical(out Outcome, err error) Outcome {
	out.Status = StatusCritical
	out.Message = prefixCritical + err.Error()
	g.notify.Error(out.Message)
	g.notify.Notify(out.Message)
	return out
}

// removeSource deletes the local media file that was just sent. A path
// that resolved to text was never uploaded and is left alone.
func (g *Gate) removeSource(req *request.SendRequest) {
	p := req.MediaPath
	if p == "" || !req.Kind.IsMedia() || req.Kind.IsRemote() || request.IsURL(p) {
		return
	}
	if st, err := os.Stat(p); err != nil || st.IsDir() {
		return
	}
	if err := g.cfg.removeFile(p); err != nil {
		g.notify.Warn("Could not delete file " + p + ": " + err.Error())
	}
}

// configError reports a rejected argument bag. The orchestrator never ran.
func configError(out Outcome, msg string) Outcome {
	out.Status = StatusConfigError
	out.Message = prefixConfig + msg
	return out
}

// finish emits the config error notification (if any), writes the audit
// entry and calls the observer.
func (s settings) finish(ctx context.Context, n Notifier, out Outcome, start time.Time) Outcome {
	if out.Status == StatusConfigError {
		n.Error(out.Message)
		n.Notify(out.Message)
	}
	out.Took = time.Since(start)

	s.log.Debug("dispatch finished",
		logx.String("request_id", out.RequestID),
		logx.String("action", out.Action),
		logx.String("status", string(out.Status)),
		logx.Int64("chat_id", out.ChatID),
		logx.Int("message_id", out.MessageID),
		logx.Duration("took", out.Took),
	)

	if s.audit != nil {
		e := storage.AuditEntry{
			At:        start,
			RequestID: out.RequestID,
			Action:    out.Action,
			ChatID:    out.ChatID,
			ThreadID:  out.TopicID,
			StateKey:  out.StateKey,
			MessageID: out.MessageID,
			Status:    string(out.Status),
			TookMS:    out.Took.Milliseconds(),
		}
		if !out.OK() {
			e.Error = out.Message
		}
		if err := s.audit.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
			s.log.Warn("audit append failed", logx.String("request_id", out.RequestID), logx.Err(err))
		}
	}
	if s.observe != nil {
		s.observe(out)
	}
	return out
}
