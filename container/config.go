package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/yusufsyaifudin/release/internal/svc/ascrepo"
	"github.com/yusufsyaifudin/release/internal/svc/iconrepo"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when it exists and no other file is given.
const DefaultConfigFile = "config.yml"

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ConfigHTTPServer struct for HTTP ConfigTransport configuration
type ConfigHTTPServer struct {
	Port int `yaml:"port" env:"HTTP_PORT,overwrite" validate:"min=1,max=65535"`
}

// ConfigTransport is a configuration for Admin ConfigTransport: HTTP, gRPC or anything
type ConfigTransport struct {
	HTTP ConfigHTTPServer `yaml:"http"`
}

type ConfigAppStoreConnect struct {
	BaseURL string `yaml:"baseURL" validate:"required,url"`

	// credentials given here win over the stored ones
	IssuerID       string `yaml:"issuerID" env:"ASC_ISSUER_ID,overwrite"`
	KeyID          string `yaml:"keyID" env:"ASC_KEY_ID,overwrite"`
	PrivateKey     string `yaml:"privateKey" env:"ASC_PRIVATE_KEY,overwrite"`
	PrivateKeyFile string `yaml:"privateKeyFile"`

	AppLimit      int           `yaml:"appLimit" validate:"min=1,max=200"`
	VersionLimit  int           `yaml:"versionLimit" validate:"min=1,max=200"`
	MaxConcurrent int           `yaml:"maxConcurrent" validate:"min=1"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=0"`
}

type ConfigIconLookup struct {
	URL         string        `yaml:"url" validate:"required,url"`
	CacheExpiry time.Duration `yaml:"cacheExpiry" validate:"min=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"min=0"`
}

type ConfigUpdater struct {
	FeedURL        string `yaml:"feedURL" validate:"required,url"`
	GitHubToken    string `yaml:"githubToken" env:"GITHUB_TOKEN,overwrite"`
	AssetExtension string `yaml:"assetExtension" validate:"required"`
	CurrentVersion string `yaml:"currentVersion" validate:"required"`
	Debug          bool   `yaml:"debug" env:"RELEASE_DEBUG_UPDATER,overwrite"`
	TempDir        string `yaml:"tempDir"`
	InstallDir     string `yaml:"installDir"`
}

type ConfigSettings struct {
	Backend    string `yaml:"backend" validate:"oneof=file redis"`
	Path       string `yaml:"path"`
	RedisLabel string `yaml:"redisLabel"`
}

type ConfigCache struct {
	Backend    string `yaml:"backend" validate:"oneof=memory redis"`
	MaxBytes   int    `yaml:"maxBytes" validate:"min=0"`
	RedisLabel string `yaml:"redisLabel"`
}

type ConfigRedis struct {
	Mode       string   `yaml:"mode" validate:"oneof=single sentinel cluster"`
	Address    []string `yaml:"address" validate:"required,min=1"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	MasterName string   `yaml:"masterName"`
}

// ConfigRedisResources maps a label to one redis connection.
type ConfigRedisResources map[string]ConfigRedis

type ConfigTracing struct {
	JaegerEndpoint string `yaml:"jaegerEndpoint"` // empty disables export
	Environment    string `yaml:"environment"`
}

// Config contains application config
type Config struct {
	AppStoreConnect ConfigAppStoreConnect `yaml:"appStoreConnect"`
	IconLookup      ConfigIconLookup      `yaml:"iconLookup"`
	Updater         ConfigUpdater         `yaml:"updater"`
	Settings        ConfigSettings        `yaml:"settings"`
	Cache           ConfigCache           `yaml:"cache"`
	Redis           ConfigRedisResources  `yaml:"redis" validate:"dive"`
	Transport       ConfigTransport       `yaml:"transport"`
	Tracing         ConfigTracing         `yaml:"tracing"`
}

// Version is the running build, set with -ldflags "-X".
var Version = "0.0.0"

func (c *Config) setDefaults() {
	asc := &c.AppStoreConnect
	if asc.BaseURL == "" {
		asc.BaseURL = ascrepo.DefaultBaseURL
	}

	if asc.AppLimit == 0 {
		asc.AppLimit = ascrepo.MaxLimit
	}

	if asc.VersionLimit == 0 {
		asc.VersionLimit = ascrepo.DefaultLimit
	}

	if asc.MaxConcurrent == 0 {
		asc.MaxConcurrent = 5
	}

	if asc.Timeout == 0 {
		asc.Timeout = 30 * time.Second
	}

	if c.IconLookup.URL == "" {
		c.IconLookup.URL = iconrepo.DefaultLookupURL
	}

	if c.IconLookup.CacheExpiry == 0 {
		c.IconLookup.CacheExpiry = 24 * time.Hour
	}

	if c.IconLookup.Timeout == 0 {
		c.IconLookup.Timeout = 30 * time.Second
	}

	if c.Updater.FeedURL == "" {
		c.Updater.FeedURL = updatesvc.DefaultFeedURL
	}

	if c.Updater.AssetExtension == "" {
		c.Updater.AssetExtension = updatesvc.DefaultAssetExtension
	}

	if c.Updater.CurrentVersion == "" {
		c.Updater.CurrentVersion = Version
	}

	if c.Settings.Backend == "" {
		c.Settings.Backend = BackendFile
	}

	if c.Settings.Backend == BackendFile && c.Settings.Path == "" {
		c.Settings.Path = settingsrepo.DefaultPath()
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}

	if c.Transport.HTTP.Port == 0 {
		c.Transport.HTTP.Port = 8080
	}

	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "development"
	}
}

func (c Config) validate() error {
	if err := validator.Validate(c); err != nil {
		return err
	}

	if c.Settings.Backend == BackendRedis {
		if _, ok := c.Redis[c.Settings.RedisLabel]; !ok {
			return fmt.Errorf("settings redis label '%s' is not configured", c.Settings.RedisLabel)
		}
	}

	if c.Cache.Backend == BackendRedis {
		if _, ok := c.Redis[c.Cache.RedisLabel]; !ok {
			return fmt.Errorf("cache redis label '%s' is not configured", c.Cache.RedisLabel)
		}
	}

	return nil
}

// LoadConfig reads the YAML file at path, overlays environment variables from lookuper,
// fills defaults and validates the result. An empty path reads DefaultConfigFile only if it exists.
func LoadConfig(ctx context.Context, path string, lookuper envconfig.Lookuper) (cfg Config, err error) {
	fileName := path
	if fileName == "" {
		if _, statErr := os.Stat(DefaultConfigFile); statErr == nil {
			fileName = DefaultConfigFile
		}
	}

	if fileName != "" {
		var fileContent []byte
		fileContent, err = os.ReadFile(fileName)
		if err != nil {
			err = fmt.Errorf("error read file config %s: %w", fileName, err)
			return
		}

		dec := yaml.NewDecoder(bytes.NewReader(fileContent))
		dec.KnownFields(false)
		if err = dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			err = fmt.Errorf("error decode file config %s: %w", fileName, err)
			return
		}
	}

	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	if err = envconfig.ProcessWith(ctx, &cfg, lookuper); err != nil {
		err = fmt.Errorf("error read env config: %w", err)
		return
	}

	cfg.setDefaults()
	if err = cfg.validate(); err != nil {
		err = fmt.Errorf("invalid config: %w", err)
		return
	}

	return cfg, nil
}
