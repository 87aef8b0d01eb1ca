package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "client:"

// RedisStore shares the identifier between terminal sessions on one machine.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and stores the id under name. A zero ttl
// keeps the key until it is replaced.
func NewRedisStore(addr, password, name string, ttl time.Duration) (*RedisStore, error) {
	if name == "" {
		name = DefaultKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{client: client, key: keyPrefix + name, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisStore) Save(ctx context.Context, id string) error {
	return r.client.Set(ctx, r.key, id, r.ttl).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
