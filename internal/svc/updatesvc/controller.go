package updatesvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/pkg/observe"
	"github.com/yusufsyaifudin/release/pkg/tracer"
	"github.com/yusufsyaifudin/release/pkg/validator"
	"github.com/yusufsyaifudin/release/pkg/version"
	"github.com/yusufsyaifudin/ylog"
)

const (
	DefaultAssetExtension = ".dmg"

	// download progress is published in tenths, not per byte
	progressSteps = 10
)

type ControllerConfig struct {
	Feed           Feed              `validate:"required"`
	Installer      Installer         `validate:"required"`
	Settings       settingsrepo.Repo `validate:"required"`
	HTTPClient     *http.Client      `validate:"required"`
	CurrentVersion string            `validate:"required"`
	AssetExtension string
	TempDir        string
	InstallDir     string // empty means the parent of the running .app bundle
	DebugOverride  bool   // treat any release with an installer as an update
	Exit           func(code int)
}

// Controller checks the release feed and replaces the running installation.
type Controller struct {
	Config ControllerConfig

	lock  sync.Mutex
	state State
	hub   observe.Hub[State]
}

func New(cfg ControllerConfig) (*Controller, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	if cfg.AssetExtension == "" {
		cfg.AssetExtension = DefaultAssetExtension
	}

	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}

	return &Controller{
		Config: cfg,
		state:  State{Phase: PhaseIdle, CurrentVersion: cfg.CurrentVersion},
	}, nil
}

func (c *Controller) Snapshot() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state.clone()
}

func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.hub.Subscribe()
}

// update mutates the state under lock and publishes the result.
func (c *Controller) update(fn func(s *State)) State {
	c.lock.Lock()
	defer c.lock.Unlock()

	fn(&c.state)
	out := c.state.clone()
	c.hub.Publish(out)
	return out
}

// CheckForUpdates fetches the latest release. An update is available when the release has an installer asset
// and either debug mode is on or its tag is numerically newer than the running version.
func (c *Controller) CheckForUpdates(ctx context.Context) (State, error) {
	ctx, span := tracer.StartSpan(ctx, "updatesvc.CheckForUpdates")
	defer span.End()

	c.lock.Lock()
	if c.state.Phase.busy() {
		c.lock.Unlock()
		return c.Snapshot(), ErrBusy
	}

	c.state.Phase = PhaseChecking
	c.state.Error = ""
	c.hub.Publish(c.state.clone())
	c.lock.Unlock()

	release, err := c.Config.Feed.Latest(ctx)
	if err != nil {
		ylog.Error(ctx, "check for updates failed", ylog.KV("error", err))
		st := c.update(func(s *State) {
			s.Phase = PhaseCheckFailed
			s.Error = err.Error()
		})
		return st, err
	}

	pref, err := c.Config.Settings.LoadPreferences(ctx)
	if err != nil {
		ylog.Error(ctx, "load preferences failed, using defaults", ylog.KV("error", err))
		pref = settingsrepo.Preferences{}
	}

	_, hasAsset := release.InstallerAsset(c.Config.AssetExtension)
	debug := c.Config.DebugOverride || pref.DebugUpdater
	available := hasAsset && (debug || version.IsNewer(release.TagName, c.Config.CurrentVersion))

	ylog.Info(ctx, "update check done",
		ylog.KV("latest", release.TagName),
		ylog.KV("current", c.Config.CurrentVersion),
		ylog.KV("has_installer", hasAsset),
		ylog.KV("debug", debug),
		ylog.KV("available", available),
	)

	st := c.update(func(s *State) {
		s.Latest = &release
		s.UpdateAvailable = available
		s.Ignored = available && pref.IgnoredUpdateVersion != "" && pref.IgnoredUpdateVersion == release.TagName
		s.Progress = 0
		s.Phase = PhaseUpToDate
		if available {
			s.Phase = PhaseUpdateAvailable
		}
	})

	return st, nil
}

// IgnoreVersion remembers tag so later checks flag it as ignored.
func (c *Controller) IgnoreVersion(ctx context.Context, tag string) error {
	pref, err := c.Config.Settings.LoadPreferences(ctx)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	pref.IgnoredUpdateVersion = tag
	if err = c.Config.Settings.SavePreferences(ctx, pref); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}

	c.update(func(s *State) {
		s.Ignored = s.UpdateAvailable && s.Latest != nil && s.Latest.TagName == tag
	})
	return nil
}

// DownloadAndInstall downloads the installer of the latest release, copies the bundled application over
// the running installation and exits the process. Any failing step stops the sequence; nothing is rolled back.
func (c *Controller) DownloadAndInstall(ctx context.Context) error {
	ctx, span := tracer.StartSpan(ctx, "updatesvc.DownloadAndInstall")
	defer span.End()

	c.lock.Lock()
	if c.state.Phase.busy() {
		c.lock.Unlock()
		return ErrBusy
	}

	if c.state.Latest == nil {
		c.lock.Unlock()
		return ErrNoRelease
	}

	asset, ok := c.state.Latest.InstallerAsset(c.Config.AssetExtension)
	if !ok {
		c.lock.Unlock()
		return ErrNoInstallerAsset
	}

	c.state.Phase = PhaseDownloading
	c.state.Progress = 0
	c.state.Error = ""
	c.hub.Publish(c.state.clone())
	c.lock.Unlock()

	imagePath := filepath.Join(c.Config.TempDir, filepath.Base(asset.Name))
	if err := c.download(ctx, asset, imagePath); err != nil {
		return c.fail(ctx, "download", err)
	}

	c.update(func(s *State) {
		s.Phase = PhaseInstalling
		s.Progress = 1
	})

	mountPoint, err := c.Config.Installer.Mount(ctx, imagePath)
	if err != nil {
		return c.fail(ctx, "mount", err)
	}

	appPath, err := c.Config.Installer.FindApp(mountPoint)
	if err != nil {
		c.detach(ctx, mountPoint)
		return c.fail(ctx, "find app", err)
	}

	installDir, err := c.installDir()
	if err != nil {
		c.detach(ctx, mountPoint)
		return c.fail(ctx, "locate installation", err)
	}

	// the image stays in TempDir on a failed copy
	if err = c.Config.Installer.Copy(ctx, appPath, installDir); err != nil {
		c.detach(ctx, mountPoint)
		return c.fail(ctx, "copy", err)
	}

	if err = c.Config.Installer.Unmount(ctx, mountPoint); err != nil {
		return c.fail(ctx, "unmount", err)
	}

	if err = os.Remove(imagePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		ylog.Error(ctx, "remove installer image failed", ylog.KV("path", imagePath), ylog.KV("error", err))
	}

	ylog.Info(ctx, "update installed, restarting", ylog.KV("app", appPath), ylog.KV("install_dir", installDir))
	c.update(func(s *State) {
		s.Phase = PhaseRestarting
	})

	c.Config.Exit(0)
	return nil
}

// Retry starts the download and install again from scratch.
func (c *Controller) Retry(ctx context.Context) error {
	return c.DownloadAndInstall(ctx)
}

func (c *Controller) fail(ctx context.Context, step string, err error) error {
	err = fmt.Errorf("%s: %w", step, err)
	ylog.Error(ctx, "update failed", ylog.KV("step", step), ylog.KV("error", err))
	c.update(func(s *State) {
		s.Phase = PhaseFailed
		s.Error = err.Error()
	})

	return err
}

func (c *Controller) detach(ctx context.Context, mountPoint string) {
	if err := c.Config.Installer.Unmount(ctx, mountPoint); err != nil {
		ylog.Error(ctx, "detach after failure", ylog.KV("mount_point", mountPoint), ylog.KV("error", err))
	}
}

func (c *Controller) installDir() (string, error) {
	if c.Config.InstallDir != "" {
		return c.Config.InstallDir, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", err
	}

	if resolved, _err := filepath.EvalSymlinks(exe); _err == nil {
		exe = resolved
	}

	return InstallDir(exe)
}

func (c *Controller) download(ctx context.Context, asset Asset, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.Config.HTTPClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{Code: resp.StatusCode}
	}

	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}

	w := &progressWriter{total: total, report: func(p float64) {
		c.update(func(s *State) {
			s.Progress = p
		})
	}}

	n, err := io.Copy(io.MultiWriter(f, w), resp.Body)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("write download file: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("close download file: %w", closeErr)
	}

	ylog.Info(ctx, "installer downloaded", ylog.KV("asset", asset.Name), ylog.KV("size", humanize.Bytes(uint64(n))))
	return nil
}

// progressWriter reports the downloaded fraction each time another tenth is complete.
type progressWriter struct {
	total   int64
	written int64
	step    int64
	report  func(p float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total <= 0 {
		return len(b), nil
	}

	step := p.written * progressSteps / p.total
	if step > progressSteps {
		step = progressSteps
	}

	if step > p.step {
		p.step = step
		p.report(float64(step) / progressSteps)
	}

	return len(b), nil
}
