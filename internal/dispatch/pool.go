package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tgrelay/internal/request"
	"tgrelay/internal/state"
	kit "tgrelay/internal/transport"
	logx "tgrelay/pkg/logx"
)

// TransportFactory builds the transport for one bot token.
type TransportFactory func(token string) (kit.MessageTransport, error)

const errTokenMissing = "bot token missing, set " + request.KeyBotToken

// Pool is the host-facing entry point. It keeps one Gate per bot token,
// built on first use, all sharing one Registry and one Notifier.
type Pool struct {
	factory TransportFactory
	reg     *state.Registry
	notify  Notifier
	cfg     settings

	mu           sync.Mutex
	gates        map[string]*Gate
	defaultToken string
}

func NewPool(factory TransportFactory, reg *state.Registry, notify Notifier, defaultToken string, opts ...Option) *Pool {
	return &Pool{
		factory:      factory,
		reg:          reg,
		notify:       notify,
		cfg:          newSettings(opts),
		gates:        map[string]*Gate{},
		defaultToken: strings.TrimSpace(defaultToken),
	}
}

// SetDefaultToken swaps the token used when a bag carries none. Existing gates stay.
func (p *Pool) SetDefaultToken(token string) {
	p.mu.Lock()
	p.defaultToken = strings.TrimSpace(token)
	p.mu.Unlock()
}

// Len reports how many gates were built so far.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.gates)
}

func (p *Pool) Registry() *state.Registry { return p.reg }

func (p *Pool) ExecuteSend(ctx context.Context, args request.Args) Outcome {
	g, out, ok := p.gateFor(ctx, args, ActionSend)
	if !ok {
		return out
	}
	return g.ExecuteSend(ctx, args)
}

func (p *Pool) ExecuteDelete(ctx context.Context, args request.Args) Outcome {
	g, out, ok := p.gateFor(ctx, args, ActionDelete)
	if !ok {
		return out
	}
	return g.ExecuteDelete(ctx, args)
}

// gateFor returns the gate for the bag's token, building it at most once.
// On failure it returns the already reported config error outcome.
func (p *Pool) gateFor(ctx context.Context, args request.Args, action string) (*Gate, Outcome, bool) {
	start := time.Now()
	token := strings.TrimSpace(args.String(request.KeyBotToken))

	p.mu.Lock()
	if token == "" {
		token = p.defaultToken
	}
	if token == "" {
		p.mu.Unlock()
		return nil, p.reject(ctx, action, errTokenMissing, start), false
	}
	if g, ok := p.gates[token]; ok {
		p.mu.Unlock()
		return g, Outcome{}, true
	}

	tr, err := p.factory(token)
	if err != nil {
		p.mu.Unlock()
		return nil, p.reject(ctx, action, "bot client: "+err.Error(), start), false
	}
	log := p.cfg.log.With(logx.String("bot", tokenTag(token)))
	cfg := p.cfg
	cfg.log = log
	g := newGate(NewOrchestrator(tr, p.reg, log), p.notify, cfg)
	p.gates[token] = g
	p.mu.Unlock()

	log.Info("bot gate created")
	return g, Outcome{}, true
}

func (p *Pool) reject(ctx context.Context, action, msg string, start time.Time) Outcome {
	out := configError(Outcome{RequestID: uuid.NewString(), Action: action}, msg)
	return p.cfg.finish(ctx, p.notify, out, start)
}

// tokenTag identifies a token in logs without leaking it.
func tokenTag(token string) string {
	if i := strings.IndexByte(token, ':'); i > 0 {
		return token[:i]
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
