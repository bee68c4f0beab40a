package driver

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound returned by Get when the key does not exist or has expired
var ErrKeyNotFound = errors.New("key not found")

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(ctx context.Context, key string, value string, expiration time.Duration) error
	// SetNX stores value only if key is absent, reports whether the value was stored
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, key string) error
	Ping() error
}

// PubSub define a broadcast channel interface
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads to onMessage until ctx is cancelled
	Subscribe(ctx context.Context, channel string, onMessage func(payload []byte)) error
}
