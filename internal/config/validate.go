package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

const (
	DefaultServerAddr    = "127.0.0.1:8087"
	DefaultPruneSchedule = "@hourly"
)

// scheduleParser accepts 5-field, 6-field (leading seconds) and @descriptor specs.
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a prune schedule; blank means DefaultPruneSchedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	return scheduleParser.Parse(spec)
}

// Validate checks fields that would otherwise fail late (at first dispatch or first prune).
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	for _, f := range durationFields(cfg) {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", d))
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.RedisURL) == "" {
			errs = append(errs, errors.New("storage.redis_url is required for driver \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", d))
	}

	if _, err := ParseSchedule(cfg.Storage.PruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("storage.prune_schedule: %w", err))
	}

	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("logging.telegram.chat_id is required when logging.telegram.enabled"))
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("logging.telegram.rate_per_sec must be >= 0"))
	}
	return errors.Join(errs...)
}
