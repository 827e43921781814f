package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "tgrelay/pkg/logx"
)

const defaultRedisKey = "tgrelay"

// redisStore keeps slots in one hash (<key>:slots) and audit entries in a
// sorted set (<key>:audit) scored by unix millis.
type redisStore struct {
	client   *redis.Client
	log      logx.Logger
	slotsKey string
	auditKey string
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, errors.New("storage.redis_url is required for redis driver")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisStore(c, cfg.RedisKey, log), nil
}

func newRedisStore(c *redis.Client, prefix string, log logx.Logger) *redisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisKey
	}
	return &redisStore{
		client:   c,
		log:      log,
		slotsKey: prefix + ":slots",
		auditKey: prefix + ":audit",
	}
}

func (s *redisStore) Close() error { return s.client.Close() }

func (s *redisStore) LoadSlots(ctx context.Context) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, s.slotsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(v)
		if err != nil {
			s.log.Warn("skipping malformed slot", logx.String("key", k), logx.String("value", v))
			continue
		}
		out[k] = id
	}
	return out, nil
}

// SaveSlots replaces the hash inside MULTI/EXEC so readers never see a partial snapshot.
func (s *redisStore) SaveSlots(ctx context.Context, slots map[string]int) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.slotsKey)
		if len(slots) > 0 {
			vals := make(map[string]any, len(slots))
			for k, id := range slots {
				vals[k] = id
			}
			p.HSet(ctx, s.slotsKey, vals)
		}
		return nil
	})
	return err
}

func (s *redisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, s.auditKey, redis.Z{Score: float64(e.At.UnixMilli()), Member: string(b)}).Err()
}

func (s *redisStore) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := s.client.ZRevRange(ctx, s.auditKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntry, 0, len(raw))
	for _, m := range raw {
		var e AuditEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	n, err := s.client.ZRemRangeByScore(ctx, s.auditKey, "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
