package store

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingStore wraps a Store with an in-process LRU cache for role
// resolution. Role descriptors are reference data seeded at deployment time,
// so a long-lived per-id cache is safe; every other method passes through.
type CachingStore struct {
	Store
	roles *lru.Cache[uuid.UUID, RoleDescriptor]
}

// NewCachingStore creates a caching decorator holding up to size role descriptors.
func NewCachingStore(inner Store, size int) (*CachingStore, error) {
	cache, err := lru.New[uuid.UUID, RoleDescriptor](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{Store: inner, roles: cache}, nil
}

// ResolveRoles serves descriptors from the cache where possible and fetches
// only the missing ids from the underlying store.
func (c *CachingStore) ResolveRoles(ctx context.Context, roleIDs []uuid.UUID) ([]RoleDescriptor, error) {
	var resolved []RoleDescriptor
	var missing []uuid.UUID
	for _, id := range roleIDs {
		if d, ok := c.roles.Get(id); ok {
			resolved = append(resolved, d)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	fetched, err := c.Store.ResolveRoles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, d := range fetched {
		c.roles.Add(d.ID, d)
	}
	return append(resolved, fetched...), nil
}
