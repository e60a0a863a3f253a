package iconrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/yusufsyaifudin/release/pkg/cache"
	"github.com/yusufsyaifudin/release/pkg/gate"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"golang.org/x/sync/errgroup"
)

type LookupConfig struct {
	LookupURL   string        `validate:"required,url"`
	HTTPClient  *http.Client  `validate:"required"`
	Cache       cache.Cache   `validate:"required"`
	CacheExpiry time.Duration `validate:"min=0"`
	Gate        *gate.Gate    `validate:"required"`
}

type LookupRepo struct {
	Config LookupConfig
}

var _ Repo = (*LookupRepo)(nil)

func NewLookup(cfg LookupConfig) (*LookupRepo, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("icon lookup repo config error: %w", err)
	}

	return &LookupRepo{
		Config: cfg,
	}, nil
}

func (l *LookupRepo) FetchIcon(ctx context.Context, bundleID string) (icon Icon, ok bool) {
	bundleID = strings.TrimSpace(bundleID)
	if bundleID == "" {
		return
	}

	ctx, span := tracer.StartSpan(ctx, "iconrepo.FetchIcon")
	defer span.End()

	err := l.Config.Cache.GetAs(ctx, bundleID, &icon)
	if err == nil && icon.URL != "" {
		ok = true
		return
	}

	if err != nil && !errors.Is(err, cache.ErrKeyNotExist) {
		ylog.Error(ctx, "get icon from cache error, continue to lookup", ylog.KV("error", err))
	}

	icon, err = l.lookup(ctx, bundleID)
	if err != nil {
		ylog.Error(ctx, "icon lookup failed", ylog.KV("bundle_id", bundleID), ylog.KV("error", err))
		return Icon{}, false
	}

	if icon.URL == "" {
		return Icon{}, false
	}

	if _err := l.Config.Cache.SetExp(ctx, bundleID, icon, l.Config.CacheExpiry); _err != nil {
		ylog.Error(ctx, "set icon to cache error", ylog.KV("error", _err))
	}

	return icon, true
}

func (l *LookupRepo) FetchIcons(ctx context.Context, bundleIDs []string) map[string]Icon {
	var (
		lock    sync.Mutex
		results = make(map[string]Icon, len(bundleIDs))
		seen    = make(map[string]struct{}, len(bundleIDs))
		group   errgroup.Group
	)

	for _, bundleID := range bundleIDs {
		if _, dup := seen[bundleID]; dup || bundleID == "" {
			continue
		}

		seen[bundleID] = struct{}{}
		bundleID := bundleID

		group.Go(func() error {
			return l.Config.Gate.Do(ctx, func(ctx context.Context) error {
				icon, ok := l.FetchIcon(ctx, bundleID)
				if !ok {
					return nil
				}

				lock.Lock()
				results[bundleID] = icon
				lock.Unlock()
				return nil
			})
		})
	}

	// only a cancelled context ends up here, partial results are still returned
	if err := group.Wait(); err != nil {
		ylog.Error(ctx, "fetch icons stopped early", ylog.KV("error", err))
	}

	return results
}

func (l *LookupRepo) lookup(ctx context.Context, bundleID string) (icon Icon, err error) {
	query := url.Values{}
	query.Set("bundleId", bundleID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Config.LookupURL+"?"+query.Encode(), nil)
	if err != nil {
		err = fmt.Errorf("build lookup request error: %w", err)
		return
	}

	resp, err := l.Config.HTTPClient.Do(req)
	if err != nil {
		err = fmt.Errorf("lookup request error: %w", err)
		return
	}

	defer func() {
		if _err := resp.Body.Close(); _err != nil {
			ylog.Error(ctx, "cannot close lookup response body", ylog.KV("error", _err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("read lookup response error: %w", err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("lookup status %d", resp.StatusCode)
		return
	}

	if !gjson.ValidBytes(body) {
		err = fmt.Errorf("lookup response is not valid json")
		return
	}

	first := gjson.GetBytes(body, "results.0")
	if !first.Exists() {
		return
	}

	icon = Icon{
		BundleID: bundleID,
		Name:     first.Get("trackName").String(),
	}

	for _, key := range artworkKeys {
		if u := first.Get(key).String(); u != "" {
			icon.URL = u
			break
		}
	}

	return
}
