package settingsrepo

import (
	"context"
	"errors"
)

var ErrKeyNotExist = errors.New("settings key not exists")

// KV is the raw storage under the settings. Values are opaque JSON blobs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
