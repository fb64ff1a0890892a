package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/netpulse/webclient/internal/model"
	"github.com/netpulse/webclient/internal/util"
	"github.com/redis/go-redis/v9"
)

const DefaultStoreKey = "netpulse:ads:active"

// Store shares the active ad list between server instances.
type Store interface {
	// Load reports ok=false when nothing is stored.
	Load(ctx context.Context) (records []model.AdSlotRecord, ok bool, err error)
	Save(ctx context.Context, records []model.AdSlotRecord, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Broadcaster fans cache invalidations out to every instance sharing a
// store.
type Broadcaster interface {
	PublishInvalidation(ctx context.Context, origin string) error
	// SubscribeInvalidations calls handle with the origin of every
	// invalidation until the returned stop func is called.
	SubscribeInvalidations(ctx context.Context, handle func(origin string)) (stop func() error, err error)
}

type StoreConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Key      string
}

type RedisStore struct {
	client *redis.Client
	key    string
	logger *util.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(config *StoreConfig, logger *util.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = util.NewNopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infow("Redis ad store initialized", "addr", client.Options().Addr, "key", config.Key)
	return NewRedisStoreFromClient(client, config.Key, logger), nil
}

func NewRedisStoreFromClient(client *redis.Client, key string, logger *util.Logger) *RedisStore {
	if key == "" {
		key = DefaultStoreKey
	}
	if logger == nil {
		logger = util.NewNopLogger()
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

func (s *RedisStore) Load(ctx context.Context) ([]model.AdSlotRecord, bool, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var records []model.AdSlotRecord
	if err := json.Unmarshal(val, &records); err != nil {
		return nil, false, fmt.Errorf("decode stored ads: %w", err)
	}
	if records == nil {
		records = []model.AdSlotRecord{}
	}

	s.logger.Debugw("Ad store hit", "key", s.key, "count", len(records))
	return records, true, nil
}

func (s *RedisStore) Save(ctx context.Context, records []model.AdSlotRecord, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode ads: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	s.logger.Debugw("Ad store written", "key", s.key, "count", len(records), "ttl", ttl)
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) channel() string {
	return s.key + ":invalidate"
}

func (s *RedisStore) PublishInvalidation(ctx context.Context, origin string) error {
	if err := s.client.Publish(ctx, s.channel(), origin).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel(), err)
	}
	return nil
}

func (s *RedisStore) SubscribeInvalidations(ctx context.Context, handle func(origin string)) (func() error, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel(), err)
	}

	go func() {
		for msg := range sub.Channel() {
			handle(msg.Payload)
		}
	}()

	s.logger.Infow("Subscribed to ad invalidations", "channel", s.channel())
	return sub.Close, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
