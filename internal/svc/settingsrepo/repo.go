package settingsrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
	"github.com/yusufsyaifudin/release/pkg/validator"
)

const (
	KeyCredentials = "AppStoreConnectConfig"
	KeyPreferences = "Preferences"
)

var (
	ErrNotConfigured      = errors.New("credentials are not configured")
	ErrInvalidKeyEncoding = errors.New("private key file is not valid utf-8 text")
)

// Preferences are user toggles that outlive the process.
type Preferences struct {
	DebugUpdater         bool   `json:"debugUpdaterEnabled"`
	IgnoredUpdateVersion string `json:"ignoredUpdateVersion"`
}

type Repo interface {
	// LoadCredentials returns ErrNotConfigured when nothing valid is stored.
	LoadCredentials(ctx context.Context) (cred ascauth.Credentials, err error)
	SaveCredentials(ctx context.Context, cred ascauth.Credentials) error
	ClearCredentials(ctx context.Context) error

	// LoadPreferences returns zero Preferences when nothing is stored.
	LoadPreferences(ctx context.Context) (pref Preferences, err error)
	SavePreferences(ctx context.Context, pref Preferences) error
}

type DefaultRepoConfig struct {
	KV KV `validate:"required"`
}

type DefaultRepo struct {
	Config DefaultRepoConfig
}

var _ Repo = (*DefaultRepo)(nil)

func New(cfg DefaultRepoConfig) (*DefaultRepo, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	return &DefaultRepo{Config: cfg}, nil
}

func (d *DefaultRepo) load(ctx context.Context, key string, out interface{}) (found bool, err error) {
	data, err := d.Config.KV.Get(ctx, key)
	if errors.Is(err, ErrKeyNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if err = json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	return true, nil
}

func (d *DefaultRepo) save(ctx context.Context, key string, in interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return d.Config.KV.Set(ctx, key, data)
}

func (d *DefaultRepo) LoadCredentials(ctx context.Context) (cred ascauth.Credentials, err error) {
	found, err := d.load(ctx, KeyCredentials, &cred)
	if err != nil {
		return
	}

	if !found || !cred.Valid() {
		return ascauth.Credentials{}, ErrNotConfigured
	}

	return
}

func (d *DefaultRepo) SaveCredentials(ctx context.Context, cred ascauth.Credentials) error {
	if !cred.Valid() {
		return ascauth.ErrInvalidCredentials
	}

	return d.save(ctx, KeyCredentials, cred)
}

func (d *DefaultRepo) ClearCredentials(ctx context.Context) error {
	return d.Config.KV.Delete(ctx, KeyCredentials)
}

func (d *DefaultRepo) LoadPreferences(ctx context.Context) (pref Preferences, err error) {
	_, err = d.load(ctx, KeyPreferences, &pref)
	return
}

func (d *DefaultRepo) SavePreferences(ctx context.Context, pref Preferences) error {
	return d.save(ctx, KeyPreferences, pref)
}

// ReadPrivateKeyFile returns the content of a .p8 key file as text.
func ReadPrivateKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read private key file: %w", err)
	}

	if !utf8.Valid(data) {
		return "", ErrInvalidKeyEncoding
	}

	return string(data), nil
}
