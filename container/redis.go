package container

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

// RedisConnMaker opens every configured redis connection once; components share them by label.
type RedisConnMaker struct {
	ctx     context.Context
	clients map[string]redis.UniversalClient
	closer  []Closer
}

func NewRedisConnMaker(ctx context.Context, conf ConfigRedisResources) (*RedisConnMaker, error) {
	instance := &RedisConnMaker{
		ctx:     ctx,
		clients: make(map[string]redis.UniversalClient, len(conf)),
		closer:  make([]Closer, 0, len(conf)),
	}

	// sorted so errors and close order do not depend on map iteration
	labels := make([]string, 0, len(conf))
	for label := range conf {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		if err := instance.connect(label, conf[label]); err != nil {
			// close previous opened connection if error happen
			if _err := instance.CloseAll(); _err != nil {
				err = multierr.Append(err, _err)
			}

			return nil, err
		}
	}

	return instance, nil
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(strings.ToLower(label))
}

func newRedisClient(conf ConfigRedis) (redis.UniversalClient, error) {
	switch conf.Mode {
	case "single":
		return redis.NewClient(&redis.Options{
			Addr:     conf.Address[0],
			Username: conf.Username,
			Password: conf.Password,
			DB:       conf.DB,
		}), nil

	case "sentinel":
		return redis.NewFailoverClient(&redis.FailoverOptions{
			SentinelAddrs: conf.Address,
			Username:      conf.Username,
			Password:      conf.Password,
			DB:            conf.DB,
			MasterName:    conf.MasterName,
		}), nil

	case "cluster":
		// cluster mode does not support DB selection
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    conf.Address,
			Username: conf.Username,
			Password: conf.Password,
		}), nil
	}

	return nil, fmt.Errorf("unknown redis mode: %s", conf.Mode)
}

func (i *RedisConnMaker) connect(label string, conf ConfigRedis) error {
	label = normalizeLabel(label)
	if err := validator.Var(label, "required,alphanum"); err != nil {
		return fmt.Errorf("invalid redis label '%s': %w", label, err)
	}

	if err := validator.Validate(conf); err != nil {
		return fmt.Errorf("invalid redis config '%s': %w", label, err)
	}

	client, err := newRedisClient(conf)
	if err != nil {
		return fmt.Errorf("redis %s: %w", label, err)
	}

	// registered before ping so a failed ping still gets closed
	i.closer = append(i.closer, NewNamedCloser(label, client))

	if err = client.Ping(i.ctx).Err(); err != nil {
		return fmt.Errorf("error ping redis %s: %w", label, err)
	}

	i.clients[label] = client
	ylog.Debug(i.ctx, "redis: connected", ylog.KV("label", label), ylog.KV("mode", conf.Mode))
	return nil
}

// Get returns the connection registered under label.
func (i *RedisConnMaker) Get(label string) (redis.UniversalClient, error) {
	client, ok := i.clients[normalizeLabel(label)]
	if !ok {
		return nil, fmt.Errorf("redis '%s' is not configured", label)
	}

	return client, nil
}

func (i *RedisConnMaker) CloseAll() error {
	var err error
	for _, closer := range i.closer {
		if e := closer.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("close redis %s: %w", closer.Name(), e))
		}
	}

	if err != nil {
		ylog.Error(i.ctx, "redis: some error occurred when closing", ylog.KV("error", err))
	}

	i.closer = nil
	return err
}
