package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tgrelay/internal/config"
	"tgrelay/internal/dispatch"
	"tgrelay/internal/eventbus"
	"tgrelay/internal/notify"
	"tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/state"
	"tgrelay/internal/storage"
	kit "tgrelay/internal/transport"
	"tgrelay/internal/transport/telegram"
	logx "tgrelay/pkg/logx"
)

// App owns every long-lived component. CLI one-shot commands use Pool directly;
// `serve` calls Run.
type App struct {
	cfgm *config.ConfigManager

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	reg   *state.Registry
	sink  *notify.Sink
	pool  *dispatch.Pool

	factory dispatch.TransportFactory
	sup     *supervisor.Supervisor
}

type Option func(*App)

// WithTransportFactory replaces the Telegram client factory.
func WithTransportFactory(f dispatch.TransportFactory) Option {
	return func(a *App) { a.factory = f }
}

// New loads cfgPath and wires storage, registry, notifier and the gate pool.
func New(ctx context.Context, cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(ctx, cfgm, cfg, opts...)
}

func newApp(ctx context.Context, cfgm *config.ConfigManager, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfgm: cfgm, bus: eventbus.New()}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if a.factory == nil {
		a.factory = a.telegramFactory
	}

	// The chat sink needs a transport built from the default token; install it after Apply.
	logSvc, log := logx.New(cfg.Logging.Logx(), nil)
	a.logs = logSvc
	a.log = log.With(logx.String("comp", "app"))
	a.refreshLogSender(cfg)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	reg, err := state.Open(ctx, store)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	a.reg = reg
	a.log.Info("storage ready", logx.String("driver", sc.Driver), logx.Int("slots", reg.Len()))

	a.sink = notify.New(log.With(logx.String("comp", "notify")), a.bus)
	a.pool = dispatch.NewPool(a.factory, reg, a.sink, cfg.Telegram.Token,
		dispatch.WithLogger(log.With(logx.String("comp", "dispatch"))),
		dispatch.WithAuditor(store),
		dispatch.WithObserver(a.observe),
	)
	return a, nil
}

func (a *App) Pool() *dispatch.Pool { return a.pool }
func (a *App) Registry() *state.Registry { return a.reg }
func (a *App) Store() storage.Store { return a.store }
func (a *App) Bus() eventbus.Bus { return a.bus }
func (a *App) Logger() logx.Logger { return a.log }
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Notifications() []notify.Entry { return a.sink.History() }

// Close releases storage and flushes log sinks. Call after Run returned.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) telegramFactory(token string) (kit.MessageTransport, error) {
	tc, err := mapTelegramConfig(a.cfgm.Get(), token)
	if err != nil {
		return nil, err
	}
	c, err := telegram.New(tc, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// refreshLogSender points the log chat sink at a client for the default token.
func (a *App) refreshLogSender(cfg *config.Config) {
	token := strings.TrimSpace(cfg.Telegram.Token)
	if token == "" || !cfg.Logging.Telegram.Enabled {
		a.logs.SetSender(nil)
		return
	}
	tr, err := a.factory(token)
	if err != nil {
		a.log.Warn("log chat sink disabled", logx.Err(err))
		a.logs.SetSender(nil)
		return
	}
	if s, ok := tr.(logx.Sender); ok {
		a.logs.SetSender(s)
	}
}

// observe republishes finished dispatches on the bus.
func (a *App) observe(out dispatch.Outcome) {
	typ := eventbus.TypeFailed
	if out.OK() {
		typ = eventbus.TypeSent
		if out.Action == dispatch.ActionDelete {
			typ = eventbus.TypeDeleted
		}
	}
	a.bus.Publish(eventbus.Event{Type: typ, Data: out})
}
