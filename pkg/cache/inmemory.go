package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/segmentio/encoding/json"
)

// DefaultMaxBytes is the in-memory budget when none is configured.
const DefaultMaxBytes = 50 * 1024 * 1024

// InMemory is a byte bounded cache. When the budget is full the oldest buckets are overwritten.
type InMemory struct {
	DB  *fastcache.Cache
	now func() time.Time
}

var _ Cache = (*InMemory)(nil)

type envelope struct {
	ExpiresAt int64           `json:"e,omitempty"` // unix nano, zero means never
	Value     json.RawMessage `json:"v"`
}

func NewInMemory(maxBytes int) (*InMemory, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &InMemory{
		DB:  fastcache.New(maxBytes),
		now: time.Now,
	}, nil
}

func (i *InMemory) GetAs(_ context.Context, key string, out interface{}) error {
	result := i.DB.Get(nil, []byte(key))
	if result == nil {
		return ErrKeyNotExist
	}

	var env envelope
	if err := json.Unmarshal(result, &env); err != nil {
		return fmt.Errorf("cannot unmarshal cache envelope: %w", err)
	}

	if env.ExpiresAt > 0 && i.now().UnixNano() >= env.ExpiresAt {
		i.DB.Del([]byte(key))
		return ErrKeyNotExist
	}

	return json.Unmarshal(env.Value, out)
}

func (i *InMemory) SetExp(_ context.Context, key string, inValue interface{}, expireDur time.Duration) error {
	val, err := json.Marshal(inValue)
	if err != nil {
		err = fmt.Errorf("cannot marshal json value: %w", err)
		return err
	}

	env := envelope{Value: val}
	if expireDur > 0 {
		env.ExpiresAt = i.now().Add(expireDur).UnixNano()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("cannot marshal cache envelope: %w", err)
	}

	i.DB.Set([]byte(key), data)
	return nil
}

func (i *InMemory) Delete(_ context.Context, key string) error {
	i.DB.Del([]byte(key))
	return nil
}

// Reset removes every entry.
func (i *InMemory) Reset() {
	i.DB.Reset()
}
