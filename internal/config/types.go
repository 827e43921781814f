package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	// Token is the default bot token, used when a call carries no tg_bot_token.
	Token string `json:"token"`
	// APIURL overrides https://api.telegram.org (self-hosted Bot API server).
	APIURL string `json:"api_url,omitempty"`
	// Timeout bounds one Bot API call. Go duration string, default "30s".
	Timeout string `json:"timeout,omitempty"`
}

// ServerConfig controls the HTTP service.
//
// Security note: with an empty APIKey every route except /health is open.
// Bind to localhost in that case.
type ServerConfig struct {
	Addr         string `json:"addr"`              // default "127.0.0.1:8087"
	APIKey       string `json:"api_key,omitempty"` // bearer token (do not log)
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// Pprof mounts net/http/pprof under /debug/pprof/, behind the same api key.
	Pprof bool `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warn+ log lines to an operator chat using the default token.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects where slots and the audit trail live.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/tgrelay" }
type StorageConfig struct {
	Driver      string `json:"driver"` // memory | file | sqlite | redis
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
	RedisURL    string `json:"redis_url,omitempty"`
	RedisKey    string `json:"redis_key,omitempty"`

	// AuditRetention drops audit entries older than this. "0s" or empty keeps everything.
	AuditRetention string `json:"audit_retention,omitempty"`
	// PruneSchedule is a cron spec for the prune job, default "@hourly".
	PruneSchedule string `json:"prune_schedule,omitempty"`
}
