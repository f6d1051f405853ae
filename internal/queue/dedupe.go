package queue

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers message ids that were handled successfully so that
// redeliveries of the same outbox message are acknowledged without a second
// side effect.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// MemoryDeduper keeps the most recent ids in process memory.
type MemoryDeduper struct {
	mu    sync.Mutex
	size  int
	order []string
	ids   map[string]struct{}
}

func NewMemoryDeduper(size int) *MemoryDeduper {
	if size <= 0 {
		size = 10000
	}
	return &MemoryDeduper{size: size, ids: make(map[string]struct{}, size)}
}

func (m *MemoryDeduper) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok, nil
}

func (m *MemoryDeduper) Mark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return nil
	}
	if len(m.order) >= m.size {
		delete(m.ids, m.order[0])
		m.order = m.order[1:]
	}
	m.order = append(m.order, id)
	m.ids[id] = struct{}{}
	return nil
}

// RedisDeduper stores handled ids in Redis with a TTL, shared by every
// consumer process.
type RedisDeduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, prefix: "cvb:queue:handled:", ttl: ttl}
}

func (r *RedisDeduper) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.prefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisDeduper) Mark(ctx context.Context, id string) error {
	return r.rdb.Set(ctx, r.prefix+id, 1, r.ttl).Err()
}
