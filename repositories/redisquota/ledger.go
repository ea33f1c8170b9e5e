// Package redisquota stores the quota cap and per-student counters in Redis.
// Reservations run as a single Lua script so the check and the increment are atomic
// across every API replica sharing the instance.
package redisquota

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/upb/internship-placement/config"
	"github.com/upb/internship-placement/repositories"
	"go.uber.org/zap"
)

// reserveScript returns the new count, or -1 when no cap is set or the count reached it
const reserveScript = `
local cap = tonumber(redis.call("GET", KEYS[1]))
if not cap then
  return -1
end
local count = tonumber(redis.call("GET", KEYS[2]) or "0")
if count >= cap then
  return -1
end
return redis.call("INCR", KEYS[2])
`

// Repository implements repositories.QuotaRepository on Redis
type Repository struct {
	client *redis.Client
	prefix string
	script *redis.Script
	logger *zap.Logger
}

var _ repositories.QuotaRepository = (*Repository)(nil)

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// New creates a quota repository using keys under prefix
func New(client *redis.Client, prefix string, logger *zap.Logger) *Repository {
	return &Repository{
		client: client,
		prefix: prefix,
		script: redis.NewScript(reserveScript),
		logger: logger,
	}
}

func (r *Repository) capKey() string {
	return r.prefix + "cap"
}

func (r *Repository) countKey(studentID uuid.UUID) string {
	return r.prefix + "count:" + studentID.String()
}

// GetCap returns the configured cap
func (r *Repository) GetCap(ctx context.Context) (int, error) {
	cap, err := r.client.Get(ctx, r.capKey()).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, repositories.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get quota cap: %w", err)
	}
	return cap, nil
}

// SetCap replaces the cap
func (r *Repository) SetCap(ctx context.Context, cap int) error {
	if err := r.client.Set(ctx, r.capKey(), strconv.Itoa(cap), 0).Err(); err != nil {
		return fmt.Errorf("failed to set quota cap: %w", err)
	}
	r.logger.Info("quota cap updated", zap.Int("max_applications_per_student", cap))
	return nil
}

// EnsureCap seeds the cap when the key is absent
func (r *Repository) EnsureCap(ctx context.Context, defaultCap int) error {
	if err := r.client.SetNX(ctx, r.capKey(), strconv.Itoa(defaultCap), 0).Err(); err != nil {
		return fmt.Errorf("failed to seed quota cap: %w", err)
	}
	return nil
}

// GetCount returns the student's charged submissions
func (r *Repository) GetCount(ctx context.Context, studentID uuid.UUID) (int, error) {
	count, err := r.client.Get(ctx, r.countKey(studentID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get quota usage: %w", err)
	}
	return count, nil
}

// Reserve runs the check-and-increment script
func (r *Repository) Reserve(ctx context.Context, studentID uuid.UUID) (int, error) {
	keys := []string{r.capKey(), r.countKey(studentID)}
	result, err := r.script.Run(ctx, r.client, keys).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if result < 0 {
		return 0, repositories.ErrQuotaExhausted
	}

	r.logger.Debug("quota reserved",
		zap.String("student_id", studentID.String()),
		zap.Int64("applications_sent", result))
	return int(result), nil
}

// HealthCheck pings the Redis server
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *Repository) Close() error {
	return r.client.Close()
}
