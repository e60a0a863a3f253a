package settingsrepo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/release/pkg/validator"
)

type FileKVConfig struct {
	Path string `validate:"required"`
}

// FileKV keeps every key in one JSON object on disk.
// A missing file reads as empty; writes go to a temp file first and then replace the original.
type FileKV struct {
	Config FileKVConfig

	lock sync.Mutex
}

var _ KV = (*FileKV)(nil)

func NewFileKV(cfg FileKVConfig) (*FileKV, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("error validate settings file: %w", err)
	}

	return &FileKV{Config: cfg}, nil
}

// DefaultPath is settings.json under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}

	return filepath.Join(dir, "release", "settings.json")
}

func (f *FileKV) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.Config.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	values := map[string]json.RawMessage{}
	if len(data) == 0 {
		return values, nil
	}

	if err = json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("settings file %s is not a json object: %w", f.Config.Path, err)
	}

	return values, nil
}

func (f *FileKV) write(values map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(f.Config.Path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp := f.Config.Path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	if err = os.Rename(tmp, f.Config.Path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}

	return nil
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return nil, err
	}

	v, ok := values[key]
	if !ok {
		return nil, ErrKeyNotExist
	}

	return v, nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value of %s is not valid json", key)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}

	values[key] = value
	return f.write(values)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}

	if _, ok := values[key]; !ok {
		return nil
	}

	delete(values, key)
	return f.write(values)
}
