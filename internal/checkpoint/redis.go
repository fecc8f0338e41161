package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectionTimeout = 5 * time.Second

// RedisStore keeps each checkpoint under <prefix>:checkpoint:<name> and
// indexes names in a sorted set scored by update time.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisConfig holds connection settings.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":checkpoint:" + name
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":checkpoints"
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, name string, v any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get checkpoint %s: %w", name, err)
	}

	if decodeErr := decode(name, data, v); decodeErr != nil {
		return false, decodeErr
	}
	return true, nil
}

// Save implements Store. The value and index entry are written in one
// MULTI/EXEC transaction.
func (s *RedisStore) Save(ctx context.Context, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := encode(v)
	if err != nil {
		return err
	}

	score := float64(s.now().UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(name), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", name, err)
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context) ([]Info, error) {
	entries, err := s.client.ZRangeWithScores(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	out := make([]Info, 0, len(entries))
	for _, z := range entries {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		size, strErr := s.client.StrLen(ctx, s.key(name)).Result()
		if strErr != nil {
			return nil, fmt.Errorf("size checkpoint %s: %w", name, strErr)
		}
		out = append(out, Info{
			Name:      name,
			UpdatedAt: time.Unix(0, int64(z.Score)),
			Size:      int(size),
		})
	}

	sortInfos(out)
	return out, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
