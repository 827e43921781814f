package config

import (
	"sort"
	"strings"

	logx "tgrelay/pkg/logx"
)

// SummarizeConfigChange returns the changed sections plus log-safe attrs.
// Secrets (bot token, api key) are reported only as "changed"/"set".
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	if tokenChanged ||
		strings.TrimSpace(ot.APIURL) != strings.TrimSpace(nt.APIURL) ||
		strings.TrimSpace(ot.Timeout) != strings.TrimSpace(nt.Timeout) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.Bool("telegram.api_url_set", strings.TrimSpace(nt.APIURL) != ""),
			logx.String("telegram.timeout", strings.TrimSpace(nt.Timeout)),
		)
	}

	oSrv, nSrv := oldCfg.Server, newCfg.Server
	if strings.TrimSpace(oSrv.Addr) != strings.TrimSpace(nSrv.Addr) ||
		oSrv.APIKey != nSrv.APIKey ||
		strings.TrimSpace(oSrv.ReadTimeout) != strings.TrimSpace(nSrv.ReadTimeout) ||
		strings.TrimSpace(oSrv.WriteTimeout) != strings.TrimSpace(nSrv.WriteTimeout) ||
		oSrv.Pprof != nSrv.Pprof {
		// Listener settings only take effect after a restart.
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", strings.TrimSpace(nSrv.Addr)),
			logx.Bool("server.api_key_set", nSrv.APIKey != ""),
			logx.Bool("server.pprof", nSrv.Pprof),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.audit_retention", strings.TrimSpace(newCfg.Storage.AuditRetention)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// Logx maps the logging section onto the logger service config.
func (c LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Telegram.Enabled,
			ChatID:     c.Telegram.ChatID,
			ThreadID:   c.Telegram.ThreadID,
			MinLevel:   c.Telegram.MinLevel,
			RatePerSec: c.Telegram.RatePerSec,
		},
	}
}
