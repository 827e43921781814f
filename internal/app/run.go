package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"tgrelay/internal/config"
	"tgrelay/internal/eventbus"
	"tgrelay/internal/runtime/supervisor"
	"tgrelay/internal/server"
	logx "tgrelay/pkg/logx"
)

const asyncDrainTimeout = 10 * time.Second

// Run serves the HTTP API and the background loops until ctx is done.
// Async dispatches still in flight get asyncDrainTimeout to finish.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfgm.Get()
	scfg, err := mapServerConfig(cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", scfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", scfg.Addr, err)
	}

	// Async dispatches outlive the request, not the process drain.
	a.sup = supervisor.New(context.WithoutCancel(ctx), supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	srv := server.New(scfg, server.Deps{
		Dispatcher: a.pool,
		Registry:   a.reg,
		Audit:      a.store,
		Bus:        a.bus,
		Async:      a.sup,
		Log:        a.log,
	})

	a.cfgm.SetValidator(a.validateReload)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })
	g.Go(func() error { return a.cfgm.Watch(gctx) })
	g.Go(func() error { a.applyLoop(gctx); return nil })
	g.Go(func() error { return a.pruneLoop(gctx) })
	g.Go(func() error { a.eventLog(gctx); return nil })
	g.Go(func() error { return a.systemdLoop(gctx) })

	a.log.Info("tgrelay started", logx.String("addr", ln.Addr().String()))
	runErr := g.Wait()

	sdNotify(a.log, daemon.SdNotifyStopping)
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), asyncDrainTimeout)
	defer cancel()
	if err := a.sup.Wait(drainCtx); err != nil {
		a.log.Warn("async dispatches did not drain cleanly", logx.Err(err),
			logx.Int64("in_flight", a.sup.Counters().Active))
	}
	// Stop cancels whatever outlived the drain and waits for it to unwind.
	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer stopCancel()
	if err := a.sup.Stop(stopCtx); err != nil {
		a.log.Warn("supervisor stopped with error", logx.Err(err))
	}
	a.log.Info("tgrelay stopped")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// validateReload runs on top of config.Validate before a reload is committed.
func (a *App) validateReload(_ context.Context, cfg *config.Config) error {
	if cfg.Logging.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("logging.telegram.enabled requires telegram.token")
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	_, err := mapTelegramConfig(cfg, "")
	return err
}

// applyLoop applies committed reloads. Listener and storage settings need a restart.
func (a *App) applyLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.apply(last, next)
			last = next
		}
	}
}

func (a *App) apply(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(next.Logging.Logx())
			a.refreshLogSender(next)
		case "telegram":
			a.pool.SetDefaultToken(next.Telegram.Token)
			a.refreshLogSender(next)
		case "server", "storage":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeReload, Data: sections})
}

// pruneLoop drops audit entries older than storage.audit_retention on the cron schedule.
func (a *App) pruneLoop(ctx context.Context) error {
	sched, err := config.ParseSchedule(a.cfgm.Get().Storage.PruneSchedule)
	if err != nil {
		return fmt.Errorf("storage.prune_schedule: %w", err)
	}
	// Catch up once after downtime; a store that is still warming up is retried.
	a.sup.GoRestart("audit.prune.startup", func(context.Context) error {
		if ctx.Err() != nil {
			return nil
		}
		_, err := a.PruneAudit(ctx)
		return err
	}, supervisor.WithRestartBackoff(time.Second, 5*time.Second))

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := a.PruneAudit(ctx); err != nil {
			a.log.Warn("audit prune failed", logx.Err(err))
		}
	}))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// PruneAudit applies the current retention once. It is a no-op when retention is 0.
func (a *App) PruneAudit(ctx context.Context) (int, error) {
	keep := auditRetention(a.cfgm.Get())
	if keep <= 0 {
		return 0, nil
	}
	n, err := a.store.PruneAudit(ctx, time.Now().Add(-keep))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info("audit pruned", logx.Int("removed", n), logx.Duration("retention", keep))
	}
	return n, nil
}

func (a *App) eventLog(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type))
		}
	}
}

// systemdLoop reports readiness and feeds the watchdog when run under systemd.
// Outside systemd every notify is a no-op.
func (a *App) systemdLoop(ctx context.Context) error {
	sdNotify(a.log, daemon.SdNotifyReady)
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			sdNotify(a.log, daemon.SdNotifyWatchdog)
		}
	}
}

func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}
