package app

import (
	"strings"
	"time"

	"tgrelay/internal/config"
	"tgrelay/internal/server"
	"tgrelay/internal/storage"
	"tgrelay/internal/transport/telegram"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
		RedisURL:    strings.TrimSpace(sc.RedisURL),
		RedisKey:    strings.TrimSpace(sc.RedisKey),
	}, nil
}

func mapTelegramConfig(cfg *config.Config, token string) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 30*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:   token,
		APIURL:  strings.TrimSpace(cfg.Telegram.APIURL),
		Timeout: timeout,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	rt, err := config.ParseDurationOrDefault("server.read_timeout", cfg.Server.ReadTimeout, 15*time.Second)
	if err != nil {
		return server.Config{}, err
	}
	// Zero write timeout keeps /v1/events streams open.
	wt, err := config.ParseDurationField("server.write_timeout", cfg.Server.WriteTimeout)
	if err != nil {
		return server.Config{}, err
	}
	addr := strings.TrimSpace(cfg.Server.Addr)
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	return server.Config{
		Addr:         addr,
		APIKey:       strings.TrimSpace(cfg.Server.APIKey),
		ReadTimeout:  rt,
		WriteTimeout: wt,
		Pprof:        cfg.Server.Pprof,
	}, nil
}

// auditRetention returns 0 when pruning is disabled.
func auditRetention(cfg *config.Config) time.Duration {
	d, _ := config.ParseDurationField("storage.audit_retention", cfg.Storage.AuditRetention)
	return d
}
