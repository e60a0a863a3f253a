package cache

import (
	"context"
	"fmt"
	"time"
)

var (
	ErrKeyNotExist = fmt.Errorf("cache key not exists")
)

// Cache stores JSON encoded values by key.
// A zero or negative expiry means the entry lives until it is evicted or deleted.
type Cache interface {
	GetAs(ctx context.Context, key string, out interface{}) error
	SetExp(ctx context.Context, key string, inValue interface{}, expireDur time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Prefixed namespaces every key of the underlying Cache, so multiple components can share one store.
type Prefixed struct {
	prefix string
	cache  Cache
}

var _ Cache = (*Prefixed)(nil)

func NewPrefixed(prefix string, c Cache) *Prefixed {
	return &Prefixed{prefix: prefix, cache: c}
}

func (p *Prefixed) key(k string) string {
	return fmt.Sprintf("%s:%s", p.prefix, k)
}

func (p *Prefixed) GetAs(ctx context.Context, key string, out interface{}) error {
	return p.cache.GetAs(ctx, p.key(key), out)
}

func (p *Prefixed) SetExp(ctx context.Context, key string, inValue interface{}, expireDur time.Duration) error {
	return p.cache.SetExp(ctx, p.key(key), inValue, expireDur)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.cache.Delete(ctx, p.key(key))
}
