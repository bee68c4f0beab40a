package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient .
type RedisClient struct {
	conn *redis.Client
}

var (
	_ KeyValueDB = &RedisClient{}
	_ PubSub     = &RedisClient{}
)

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Password:    password,
		DialTimeout: 5 * time.Second,
	})
	return &RedisClient{
		conn: conn,
	}
}

// SetEX implement KeyValueDB
func (rdb *RedisClient) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	return rdb.conn.Set(ctx, key, value, expiration).Err()
}

// SetNX implement KeyValueDB
func (rdb *RedisClient) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	return rdb.conn.SetNX(ctx, key, value, expiration).Result()
}

// Get implement KeyValueDB
func (rdb *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := rdb.conn.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return v, err
}

// Exists implement KeyValueDB
func (rdb *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rdb.conn.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Del implement KeyValueDB
func (rdb *RedisClient) Del(ctx context.Context, key string) error {
	return rdb.conn.Del(ctx, key).Err()
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.conn.Ping(ctx).Err()
}

// Publish implement PubSub
func (rdb *RedisClient) Publish(ctx context.Context, channel string, payload []byte) error {
	return rdb.conn.Publish(ctx, channel, payload).Err()
}

// Subscribe implement PubSub, returns once the subscription is confirmed
func (rdb *RedisClient) Subscribe(ctx context.Context, channel string, onMessage func(payload []byte)) error {
	sub := rdb.conn.Subscribe(ctx, channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				onMessage([]byte(m.Payload))
			}
		}
	}()
	return nil
}

// Close release the connection pool
func (rdb *RedisClient) Close() error {
	return rdb.conn.Close()
}
