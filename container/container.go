package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
	"github.com/yusufsyaifudin/release/internal/svc/iconrepo"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/cache"
	"github.com/yusufsyaifudin/release/pkg/gate"
	"github.com/yusufsyaifudin/release/pkg/httplog"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

// Container is an abstraction layer to be used in use-case to stitch all business logic.
// Use this when you pass into another struct.
type Container interface {
	Settings() settingsrepo.Repo
	CatalogRepo() ascrepo.Repo
	Catalog() catalogsvc.Service
	Notes() *notesvc.Workspace
	Updater() *updatesvc.Controller

	// Configured reports whether the catalog client can sign requests.
	Configured() bool
	SaveCredentials(ctx context.Context, cred ascauth.Credentials) error
	ClearCredentials(ctx context.Context) error
}

// DefaultContainerImpl the real implementation of Container
type DefaultContainerImpl struct {
	cfg Config

	redisConn *RedisConnMaker
	closer    []Closer

	settings    settingsrepo.Repo
	catalogRepo *ascrepo.HTTPRepo
	gate        *gate.Gate
	icons       iconrepo.Repo
	catalog     catalogsvc.Service
	notes       *notesvc.Workspace
	updater     *updatesvc.Controller
}

// Ensure that DefaultContainerImpl implements Container
var _ Container = (*DefaultContainerImpl)(nil)

// Setup return pointer because it heavily used.
// This will initialize all required dependencies to run.
// This will return DefaultContainerImpl instead Container,
// the reason is when Setup called it must be close in deferred mode, any passed value using interface
// won't let user Close any dependencies during run-time.
func Setup(ctx context.Context, cfg Config) (dep *DefaultContainerImpl, err error) {
	dep = &DefaultContainerImpl{cfg: cfg}

	// close what was opened so far if any later step fails
	defer func() {
		if err == nil {
			return
		}

		if _err := dep.Close(); _err != nil {
			err = multierr.Append(err, _err)
		}

		dep = nil
	}()

	shutdownTracer, err := tracer.Setup(cfg.Tracing.JaegerEndpoint, cfg.Tracing.Environment)
	if err != nil {
		return
	}

	dep.closer = append(dep.closer, NewNamedCloser("tracer", CloserFunc(func() error {
		return shutdownTracer(context.Background())
	})))

	if len(cfg.Redis) > 0 {
		dep.redisConn, err = NewRedisConnMaker(ctx, cfg.Redis)
		if err != nil {
			return
		}

		dep.closer = append(dep.closer, NewNamedCloser("redis", CloserFunc(dep.redisConn.CloseAll)))
	}

	if err = dep.setupSettings(); err != nil {
		return
	}

	iconCache, err := dep.setupCache()
	if err != nil {
		return
	}

	signer, err := dep.setupSigner(ctx)
	if err != nil {
		return
	}

	dep.catalogRepo, err = ascrepo.NewHTTP(ascrepo.HTTPConfig{
		BaseURL:    cfg.AppStoreConnect.BaseURL,
		HTTPClient: httplog.NewClient(cfg.AppStoreConnect.Timeout),
		Signer:     signer,
	})
	if err != nil {
		return
	}

	dep.gate, err = gate.New(cfg.AppStoreConnect.MaxConcurrent)
	if err != nil {
		return
	}

	dep.icons, err = iconrepo.NewLookup(iconrepo.LookupConfig{
		LookupURL:   cfg.IconLookup.URL,
		HTTPClient:  httplog.NewClient(cfg.IconLookup.Timeout),
		Cache:       cache.NewPrefixed("icon", iconCache),
		CacheExpiry: cfg.IconLookup.CacheExpiry,
		Gate:        dep.gate,
	})
	if err != nil {
		return
	}

	dep.catalog, err = catalogsvc.New(catalogsvc.DefaultServiceConfig{
		CatalogRepo:  dep.catalogRepo,
		IconRepo:     dep.icons,
		Gate:         dep.gate,
		AppLimit:     cfg.AppStoreConnect.AppLimit,
		VersionLimit: cfg.AppStoreConnect.VersionLimit,
		IconTimeout:  cfg.IconLookup.Timeout,
	})
	if err != nil {
		return
	}

	dep.notes, err = notesvc.NewWorkspace(notesvc.WorkspaceConfig{CatalogRepo: dep.catalogRepo})
	if err != nil {
		return
	}

	feed, err := updatesvc.NewGitHubFeed(updatesvc.GitHubFeedConfig{
		URL:        cfg.Updater.FeedURL,
		Token:      cfg.Updater.GitHubToken,
		HTTPClient: httplog.NewClient(cfg.AppStoreConnect.Timeout),
	})
	if err != nil {
		return
	}

	dep.updater, err = updatesvc.New(updatesvc.ControllerConfig{
		Feed:           feed,
		Installer:      updatesvc.NewHdiutilInstaller(),
		Settings:       dep.settings,
		HTTPClient:     httplog.NewClient(0), // installer images take a while
		CurrentVersion: cfg.Updater.CurrentVersion,
		AssetExtension: cfg.Updater.AssetExtension,
		TempDir:        cfg.Updater.TempDir,
		InstallDir:     cfg.Updater.InstallDir,
		DebugOverride:  cfg.Updater.Debug,
	})
	if err != nil {
		return
	}

	return dep, nil
}

func (a *DefaultContainerImpl) redisClient(label string) (redis.UniversalClient, error) {
	if a.redisConn == nil {
		return nil, fmt.Errorf("no redis configured for label '%s'", label)
	}

	return a.redisConn.Get(label)
}

func (a *DefaultContainerImpl) setupSettings() error {
	var kv settingsrepo.KV
	switch a.cfg.Settings.Backend {
	case BackendRedis:
		conn, err := a.redisClient(a.cfg.Settings.RedisLabel)
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}

		kv, err = settingsrepo.NewRedisKV(settingsrepo.RedisKVConfig{DB: conn, Prefix: "release:settings"})
		if err != nil {
			return err
		}

	default:
		fileKV, err := settingsrepo.NewFileKV(settingsrepo.FileKVConfig{Path: a.cfg.Settings.Path})
		if err != nil {
			return err
		}

		kv = fileKV
	}

	settings, err := settingsrepo.New(settingsrepo.DefaultRepoConfig{KV: kv})
	if err != nil {
		return err
	}

	a.settings = settings
	return nil
}

func (a *DefaultContainerImpl) setupCache() (cache.Cache, error) {
	switch a.cfg.Cache.Backend {
	case BackendRedis:
		conn, err := a.redisClient(a.cfg.Cache.RedisLabel)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}

		return cache.NewRedis(cache.RedisConfig{DB: conn})

	default:
		return cache.NewInMemory(a.cfg.Cache.MaxBytes)
	}
}

// setupSigner prefers credentials from config, then the stored ones.
// Missing credentials are not an error: the catalog client starts in the not configured state.
func (a *DefaultContainerImpl) setupSigner(ctx context.Context) (ascauth.Signer, error) {
	asc := a.cfg.AppStoreConnect
	cred := ascauth.Credentials{
		IssuerID:     asc.IssuerID,
		PrivateKeyID: asc.KeyID,
		PrivateKey:   asc.PrivateKey,
	}

	if cred.PrivateKey == "" && asc.PrivateKeyFile != "" {
		key, err := settingsrepo.ReadPrivateKeyFile(asc.PrivateKeyFile)
		if err != nil {
			return nil, err
		}

		cred.PrivateKey = key
	}

	if cred.Valid() {
		signer, err := ascauth.NewTokenSigner(cred)
		if err != nil {
			return nil, fmt.Errorf("credentials from config: %w", err)
		}

		return signer, nil
	}

	stored, err := a.settings.LoadCredentials(ctx)
	if errors.Is(err, settingsrepo.ErrNotConfigured) {
		ylog.Info(ctx, "app store connect credentials are not configured")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("load stored credentials: %w", err)
	}

	signer, err := ascauth.NewTokenSigner(stored)
	if err != nil {
		// a broken stored key must not prevent start up, it can be replaced through configure
		ylog.Error(ctx, "stored credentials are unusable", ylog.KV("error", err))
		return nil, nil
	}

	return signer, nil
}

func (a *DefaultContainerImpl) Settings() settingsrepo.Repo {
	return a.settings
}

func (a *DefaultContainerImpl) CatalogRepo() ascrepo.Repo {
	return a.catalogRepo
}

func (a *DefaultContainerImpl) Catalog() catalogsvc.Service {
	return a.catalog
}

func (a *DefaultContainerImpl) Notes() *notesvc.Workspace {
	return a.notes
}

func (a *DefaultContainerImpl) Updater() *updatesvc.Controller {
	return a.updater
}

func (a *DefaultContainerImpl) Configured() bool {
	return a.catalogRepo.Configured()
}

// SaveCredentials persists cred and switches the catalog client to it.
// The key is parsed before anything is stored.
func (a *DefaultContainerImpl) SaveCredentials(ctx context.Context, cred ascauth.Credentials) error {
	signer, err := ascauth.NewTokenSigner(cred)
	if err != nil {
		return err
	}

	if err = a.settings.SaveCredentials(ctx, cred); err != nil {
		return err
	}

	a.catalogRepo.SetSigner(signer)
	return nil
}

// ClearCredentials removes the stored credentials and returns the catalog client to the not configured state.
func (a *DefaultContainerImpl) ClearCredentials(ctx context.Context) error {
	if err := a.settings.ClearCredentials(ctx); err != nil {
		return err
	}

	a.catalogRepo.SetSigner(nil)
	return nil
}

// Close will close all dependencies, last opened first.
func (a *DefaultContainerImpl) Close() error {
	var err error
	for i := len(a.closer) - 1; i >= 0; i-- {
		closer := a.closer[i]
		if _err := closer.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close %s error: %w", closer.Name(), _err))
		}
	}

	a.closer = nil
	return err
}
