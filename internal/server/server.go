package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tgrelay/internal/dispatch"
	"tgrelay/internal/eventbus"
	"tgrelay/internal/request"
	"tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/state"
	"tgrelay/internal/storage"
	logx "tgrelay/pkg/logx"
)

const maxBodyBytes = 1 << 20

// Dispatcher is the produced surface of dispatch.Pool.
type Dispatcher interface {
	ExecuteSend(ctx context.Context, args request.Args) dispatch.Outcome
	ExecuteDelete(ctx context.Context, args request.Args) dispatch.Outcome
}

// AuditReader lists the newest audit entries first.
type AuditReader interface {
	RecentAudit(ctx context.Context, limit int) ([]storage.AuditEntry, error)
}

// Spawner runs fire-and-forget dispatches. *supervisor.Supervisor satisfies it.
type Spawner interface {
	Go0(name string, fn func(ctx context.Context))
	Snapshot() supervisor.Snapshot
}

type Config struct {
	Addr         string
	APIKey       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Pprof        bool
}

type Deps struct {
	Dispatcher Dispatcher
	Registry   *state.Registry
	Audit      AuditReader
	Bus        eventbus.Bus
	Async      Spawner
	Log        logx.Logger
}

// Server exposes the dispatch pool over HTTP.
//
// Security: with an empty APIKey every route is open. /health is always open.
type Server struct {
	cfg  Config
	deps Deps
	log  logx.Logger
	mux  *http.ServeMux

	started time.Time
}

func New(cfg Config, deps Deps) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8087"
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     deps.Log.With(logx.String("comp", "server")),
		mux:     http.NewServeMux(),
		started: time.Now(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/send", s.withAuth(s.handleSend))
	s.mux.HandleFunc("POST /v1/delete", s.withAuth(s.handleDelete))
	s.mux.HandleFunc("GET /v1/slots", s.withAuth(s.handleSlots))
	s.mux.HandleFunc("GET /v1/audit", s.withAuth(s.handleAudit))
	s.mux.HandleFunc("GET /v1/events", s.withAuth(s.handleEvents))
	if cfg.Pprof {
		s.mountPprof()
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	if s.cfg.APIKey == "" && !isLoopbackAddr(ln.Addr().String()) {
		s.log.Warn("api without api_key on non-loopback addr (insecure)", logx.String("addr", ln.Addr().String()))
	}
	s.log.Info("http api started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("api_key_set", s.cfg.APIKey != ""),
		logx.Bool("pprof", s.cfg.Pprof),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
	}
	<-errCh
	s.log.Info("http api stopped")
	return nil
}

func (s *Server) withAuth(h http.HandlerFunc) http.HandlerFunc {
	key := strings.TrimSpace(s.cfg.APIKey)
	if key == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		ah := r.Header.Get("Authorization")
		if strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == key {
			h(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status": "ok",
		"uptime": int(time.Since(s.started).Seconds()),
	}
	if s.deps.Registry != nil {
		body["slots"] = s.deps.Registry.Len()
	}
	if s.deps.Async != nil {
		snap := s.deps.Async.Snapshot()
		body["in_flight"] = snap.Counters.Active
		body["tasks"] = snap.Tasks
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dispatch.ActionSend, s.deps.Dispatcher.ExecuteSend)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, dispatch.ActionDelete, s.deps.Dispatcher.ExecuteDelete)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, action string, exec func(context.Context, request.Args) dispatch.Outcome) {
	args, err := decodeArgs(r.Body)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && s.deps.Async != nil {
		ticket := uuid.NewString()
		// One task name per action keeps the supervisor stats bounded.
		s.deps.Async.Go0("async."+action, func(ctx context.Context) {
			out := exec(ctx, args)
			s.log.Debug("async dispatch finished",
				logx.String("ticket", ticket),
				logx.String("request_id", out.RequestID),
				logx.String("status", string(out.Status)),
			)
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "action": action, "ticket": ticket})
		return
	}

	out := exec(r.Context(), args)
	writeJSON(w, statusCode(out.Status), out)
}

// statusCode maps dispatch status to HTTP: caller mistakes are 400, Telegram
// failures 502, anything unexpected 500.
func statusCode(st dispatch.Status) int {
	switch st {
	case dispatch.StatusOK:
		return http.StatusOK
	case dispatch.StatusConfigError:
		return http.StatusBadRequest
	case dispatch.StatusFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeArgs(body io.Reader) (request.Args, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("request body must be a JSON object")
	}
	var bag map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&bag); err != nil || bag == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return request.NewArgs(bag), nil
}

type slotView struct {
	Key       string `json:"key"`
	MessageID int    `json:"message_id"`
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if s.deps.Registry == nil {
		writeJSONError(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("chat_id")), 10, 64)
	if err != nil {
		writeJSONError(w, "chat_id query parameter must be an integer", http.StatusBadRequest)
		return
	}
	slots := s.deps.Registry.AllForChat(chatID)
	out := make([]slotView, 0, len(slots))
	for k, v := range slots {
		out = append(out, slotView{Key: k, MessageID: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"chat_id": chatID, "slots": out})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Audit == nil {
		writeJSONError(w, "audit unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.deps.Audit.RecentAudit(r.Context(), limit)
	if err != nil {
		s.log.Warn("audit read failed", logx.Err(err))
		writeJSONError(w, "audit read failed", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []storage.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
