package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"wwcp-server/internal/logger"
	"wwcp-server/internal/results"
	"wwcp-server/models"
)

var ErrStatusNotFound = errors.New("no status stored for EVSE")

const (
	defaultKeyPrefix = "wwcp"
	defaultTTL       = 10 * time.Minute
)

// RedisCommands defines the Redis operations needed by the status store
type RedisCommands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisConfig configures the Redis connection of the status store
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	StateTTL  time.Duration
}

// NewRedisClient creates a Redis client and checks that the server answers.
func NewRedisClient(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Addr, err)
	}
	return client, nil
}

// StatusStore keeps the latest status of every EVSE in Redis. It receives
// status pushes like any other status receiver.
type StatusStore struct {
	id     string
	client RedisCommands
	prefix string
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

func NewStatusStore(id string, client RedisCommands, config RedisConfig, log *logger.Logger) *StatusStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaultKeyPrefix
	}
	if config.StateTTL <= 0 {
		config.StateTTL = defaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &StatusStore{
		id:     id,
		client: client,
		prefix: config.KeyPrefix,
		ttl:    config.StateTTL,
		log:    log.With("component", "state", "store", id),
		now:    time.Now,
	}
}

func (s *StatusStore) ID() string { return s.id }

func (s *StatusStore) statusKey(id models.EVSEID) string {
	return fmt.Sprintf("%s:evse:%s:status", s.prefix, id)
}

// PushEVSEStatus stores every update under its EVSE key with the configured
// TTL. Updates Redis refuses are rejected; a deadline hit mid-way rejects the
// remaining updates with a Timeout naming the deadline ctx carried.
func (s *StatusStore) PushEVSEStatus(ctx context.Context, senderID string, updates []models.EVSEStatusUpdate, opts ...results.Option) results.PushStatusResult[models.EVSEStatusUpdate] {
	start := s.now()
	actor := results.ReceivedBy(s)
	timeout := results.TimeoutOf(ctx, 0)

	// own options first, the caller's (e.g. the event tracking id) last
	outcome := func(own ...results.Option) []results.Option {
		own = append(own, results.WithRuntime(s.now().Sub(start)))
		return append(own, opts...)
	}

	if len(updates) == 0 {
		return results.PushNoOperation[models.EVSEStatusUpdate](senderID, actor, outcome()...)
	}

	var rejected []models.EVSEStatusUpdate
	var warnings []string

	for i, update := range updates {
		if err := ctx.Err(); err != nil {
			rejected = append(rejected, updates[i:]...)
			if errors.Is(err, context.DeadlineExceeded) {
				return results.PushTimeout(senderID, actor, timeout, rejected,
					outcome(results.WithWarnings(warnings...))...)
			}
			return results.PushErrorFrom(senderID, actor, err, rejected,
				outcome(results.WithWarnings(warnings...))...)
		}

		data, err := json.Marshal(update)
		if err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, fmt.Sprintf("failed to marshal status of EVSE %s: %v", update.EVSEID, err))
			continue
		}

		key := s.statusKey(update.EVSEID)
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			rejected = append(rejected, update)
			warnings = append(warnings, fmt.Sprintf("failed to store status of EVSE %s: %v", update.EVSEID, err))
			continue
		}
		s.log.Debug("stored EVSE status", "key", key, "status", update.NewStatus)
	}

	if len(rejected) > 0 {
		s.log.Warn("EVSE status updates not stored", "rejected", len(rejected), "updates", len(updates))
		return results.PushFailed(senderID, actor, rejected, outcome(
			results.WithDescription(fmt.Sprintf("%d of %d EVSE status updates not stored", len(rejected), len(updates))),
			results.WithWarnings(warnings...))...)
	}
	return results.PushSuccess[models.EVSEStatusUpdate](senderID, actor, outcome()...)
}

// LatestEVSEStatus returns the last stored status update of an EVSE
func (s *StatusStore) LatestEVSEStatus(ctx context.Context, id models.EVSEID) (*models.EVSEStatusUpdate, error) {
	data, err := s.client.Get(ctx, s.statusKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("EVSE %s: %w", id, ErrStatusNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status of EVSE %s: %w", id, err)
	}

	var update models.EVSEStatusUpdate
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		return nil, fmt.Errorf("failed to decode status of EVSE %s: %w", id, err)
	}
	return &update, nil
}
