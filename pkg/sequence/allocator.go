package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
)

// Allocator issues monotonically increasing integers used to derive
// collision-free external client identifiers. Implementations must be safe
// for concurrent use and must never return the same value twice.
type Allocator interface {
	Next(ctx context.Context) (int64, error)
}

// PostgresAllocator allocates from a database sequence. Postgres sequences
// are atomic across sessions, so no additional locking is needed.
type PostgresAllocator struct {
	db       *sql.DB
	sequence string
}

// NewPostgresAllocator creates an allocator backed by the named sequence.
func NewPostgresAllocator(db *sql.DB, sequenceName string) *PostgresAllocator {
	return &PostgresAllocator{db: db, sequence: sequenceName}
}

// Next returns the next sequence value.
func (a *PostgresAllocator) Next(ctx context.Context) (int64, error) {
	var next int64
	err := a.db.QueryRowContext(ctx, "SELECT nextval($1)", a.sequence).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate client sequence: %w", err)
	}
	return next, nil
}

// RedisAllocator allocates via Redis INCR, which is atomic on a single key.
type RedisAllocator struct {
	client *redis.Client
	key    string
}

// NewRedisAllocator creates an allocator backed by a Redis counter key.
func NewRedisAllocator(client *redis.Client, key string) *RedisAllocator {
	return &RedisAllocator{client: client, key: key}
}

// Next returns the next counter value.
func (a *RedisAllocator) Next(ctx context.Context) (int64, error) {
	next, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate client sequence: %w", err)
	}
	return next, nil
}

// MemoryAllocator is an in-process atomic counter, used in tests and
// single-node development setups.
type MemoryAllocator struct {
	counter atomic.Int64
}

// NewMemoryAllocator creates an in-memory allocator starting after start.
func NewMemoryAllocator(start int64) *MemoryAllocator {
	a := &MemoryAllocator{}
	a.counter.Store(start)
	return a
}

// Next returns the next counter value.
func (a *MemoryAllocator) Next(_ context.Context) (int64, error) {
	return a.counter.Add(1), nil
}
