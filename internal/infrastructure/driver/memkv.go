package driver

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value   string
	expires time.Time // zero means no expiration
}

// MemoryKV process local KeyValueDB and PubSub, used when no redis is configured
type MemoryKV struct {
	mu          sync.Mutex
	entries     map[string]memEntry
	subscribers map[string][]func([]byte)
	now         func() time.Time
}

var (
	_ KeyValueDB = &MemoryKV{}
	_ PubSub     = &MemoryKV{}
)

// NewMemoryKV create an empty MemoryKV
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		entries:     make(map[string]memEntry),
		subscribers: make(map[string][]func([]byte)),
		now:         time.Now,
	}
}

func (m *MemoryKV) lookup(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *MemoryKV) entry(value string, expiration time.Duration) memEntry {
	e := memEntry{value: value}
	if expiration > 0 {
		e.expires = m.now().Add(expiration)
	}
	return e
}

// SetEX implement KeyValueDB
func (m *MemoryKV) SetEX(ctx context.Context, key string, value string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = m.entry(value, expiration)
	return nil
}

// SetNX implement KeyValueDB
func (m *MemoryKV) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.entries[key] = m.entry(value, expiration)
	return true, nil
}

// Get implement KeyValueDB
func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.lookup(key); ok {
		return e.value, nil
	}
	return "", ErrKeyNotFound
}

// Exists implement KeyValueDB
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lookup(key)
	return ok, nil
}

// Del implement KeyValueDB
func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Ping implement KeyValueDB
func (m *MemoryKV) Ping() error {
	return nil
}

// Publish implement PubSub, handlers run synchronously
func (m *MemoryKV) Publish(ctx context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	handlers := append([]func([]byte){}, m.subscribers[channel]...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

// Subscribe implement PubSub. The handler is dropped when ctx is done.
func (m *MemoryKV) Subscribe(ctx context.Context, channel string, onMessage func(payload []byte)) error {
	m.mu.Lock()
	m.subscribers[channel] = append(m.subscribers[channel], onMessage)
	idx := len(m.subscribers[channel]) - 1
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		handlers := m.subscribers[channel]
		if idx < len(handlers) {
			handlers[idx] = func([]byte) {}
		}
	}()
	return nil
}
