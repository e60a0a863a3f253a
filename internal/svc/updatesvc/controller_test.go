package updatesvc_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
)

const imageContent = "fake disk image content"

type releaseServer struct {
	*httptest.Server

	lock       sync.Mutex
	tag        string
	assetName  string
	feedStatus int
	dlStatus   int
	authHeader string
	accept     string
}

func newReleaseServer(t *testing.T, tag string) *releaseServer {
	rs := &releaseServer{tag: tag, assetName: "Release.dmg", feedStatus: http.StatusOK, dlStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		rs.lock.Lock()
		defer rs.lock.Unlock()

		rs.authHeader = r.Header.Get("Authorization")
		rs.accept = r.Header.Get("Accept")
		if rs.feedStatus != http.StatusOK {
			w.WriteHeader(rs.feedStatus)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{
			"tag_name": %q,
			"name": "Release %s",
			"body": "notes",
			"assets": [
				{"name": "checksums.txt", "browser_download_url": "%s/download/checksums.txt", "size": 10},
				{"name": %q, "browser_download_url": "%s/download/image", "size": %d}
			]
		}`, rs.tag, rs.tag, rs.URL, rs.assetName, rs.URL, len(imageContent))
	})

	mux.HandleFunc("/download/image", func(w http.ResponseWriter, r *http.Request) {
		rs.lock.Lock()
		status := rs.dlStatus
		rs.lock.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		_, _ = w.Write([]byte(imageContent))
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

type fakeInstaller struct {
	lock     sync.Mutex
	calls    []string
	mountErr error
	findErr  error
	copyErr  error
	image    string
	copiedTo string
}

func (f *fakeInstaller) record(call string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeInstaller) Calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeInstaller) Mount(ctx context.Context, imagePath string) (string, error) {
	f.record("mount")
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}

	f.lock.Lock()
	f.image = string(data)
	f.lock.Unlock()

	if f.mountErr != nil {
		return "", f.mountErr
	}

	return "/Volumes/Release", nil
}

func (f *fakeInstaller) FindApp(mountPoint string) (string, error) {
	f.record("find")
	if f.findErr != nil {
		return "", f.findErr
	}

	return mountPoint + "/Release.app", nil
}

func (f *fakeInstaller) Copy(ctx context.Context, appPath, destDir string) error {
	f.record("copy")
	if f.copyErr != nil {
		return f.copyErr
	}

	f.lock.Lock()
	f.copiedTo = destDir
	f.lock.Unlock()
	return nil
}

func (f *fakeInstaller) Unmount(ctx context.Context, mountPoint string) error {
	f.record("unmount")
	return nil
}

type exitRecorder struct {
	lock  sync.Mutex
	codes []int
}

func (e *exitRecorder) Exit(code int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.codes = append(e.codes, code)
}

type testEnv struct {
	server    *releaseServer
	installer *fakeInstaller
	settings  *settingsrepo.DefaultRepo
	exit      *exitRecorder
	tempDir   string
	ctrl      *updatesvc.Controller
}

func newEnv(t *testing.T, tag, current string, debug bool) *testEnv {
	env := &testEnv{
		server:    newReleaseServer(t, tag),
		installer: &fakeInstaller{},
		exit:      &exitRecorder{},
		tempDir:   t.TempDir(),
	}

	kv, err := settingsrepo.NewFileKV(settingsrepo.FileKVConfig{Path: filepath.Join(t.TempDir(), "settings.json")})
	require.NoError(t, err)
	env.settings, err = settingsrepo.New(settingsrepo.DefaultRepoConfig{KV: kv})
	require.NoError(t, err)

	feed, err := updatesvc.NewGitHubFeed(updatesvc.GitHubFeedConfig{
		URL:        env.server.URL + "/releases/latest",
		Token:      "gh-token",
		HTTPClient: env.server.Client(),
	})
	require.NoError(t, err)

	env.ctrl, err = updatesvc.New(updatesvc.ControllerConfig{
		Feed:           feed,
		Installer:      env.installer,
		Settings:       env.settings,
		HTTPClient:     env.server.Client(),
		CurrentVersion: current,
		TempDir:        env.tempDir,
		InstallDir:     "/Applications",
		DebugOverride:  debug,
		Exit:           env.exit.Exit,
	})
	require.NoError(t, err)

	return env
}

func TestNew(t *testing.T) {
	c, err := updatesvc.New(updatesvc.ControllerConfig{})
	assert.Nil(t, c)
	assert.Error(t, err)
}

func TestGitHubFeed_Latest(t *testing.T) {
	env := newEnv(t, "v1.2.0", "1.0.0", false)

	feed, err := updatesvc.NewGitHubFeed(updatesvc.GitHubFeedConfig{
		URL:        env.server.URL + "/releases/latest",
		Token:      "gh-token",
		HTTPClient: env.server.Client(),
	})
	require.NoError(t, err)

	release, err := feed.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", release.TagName)
	assert.Len(t, release.Assets, 2)
	assert.Equal(t, "Bearer gh-token", env.server.authHeader)
	assert.Equal(t, "application/vnd.github.v3+json", env.server.accept)

	asset, ok := release.InstallerAsset(".DMG")
	assert.True(t, ok)
	assert.Equal(t, "Release.dmg", asset.Name)

	env.server.feedStatus = http.StatusForbidden
	_, err = feed.Latest(context.Background())

	var httpErr *updatesvc.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestController_CheckForUpdates(t *testing.T) {
	testCases := []struct {
		Name      string
		Tag       string
		Current   string
		Debug     bool
		AssetName string
		Phase     updatesvc.Phase
	}{
		{Name: "newer", Tag: "v1.10.0", Current: "1.9.0", AssetName: "Release.dmg", Phase: updatesvc.PhaseUpdateAvailable},
		{Name: "equal numerically", Tag: "1.2", Current: "1.2.0", AssetName: "Release.dmg", Phase: updatesvc.PhaseUpToDate},
		{Name: "older", Tag: "1.0", Current: "1.1", AssetName: "Release.dmg", Phase: updatesvc.PhaseUpToDate},
		{Name: "no installer", Tag: "2.0", Current: "1.0", AssetName: "Release.zip", Phase: updatesvc.PhaseUpToDate},
		{Name: "debug same version", Tag: "1.0", Current: "1.0", Debug: true, AssetName: "Release.dmg", Phase: updatesvc.PhaseUpdateAvailable},
		{Name: "debug needs installer", Tag: "1.0", Current: "1.0", Debug: true, AssetName: "Release.zip", Phase: updatesvc.PhaseUpToDate},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.Name, func(t *testing.T) {
			env := newEnv(t, testCase.Tag, testCase.Current, testCase.Debug)
			env.server.assetName = testCase.AssetName

			st, err := env.ctrl.CheckForUpdates(context.Background())
			require.NoError(t, err)
			assert.Equal(t, testCase.Phase, st.Phase)
			assert.Equal(t, testCase.Phase == updatesvc.PhaseUpdateAvailable, st.UpdateAvailable)
			require.NotNil(t, st.Latest)
			assert.Equal(t, testCase.Tag, st.Latest.TagName)
		})
	}
}

func TestController_CheckForUpdates_DebugPreference(t *testing.T) {
	env := newEnv(t, "1.0", "1.0", false)
	require.NoError(t, env.settings.SavePreferences(context.Background(), settingsrepo.Preferences{DebugUpdater: true}))

	st, err := env.ctrl.CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updatesvc.PhaseUpdateAvailable, st.Phase)
}

func TestController_CheckForUpdates_Failed(t *testing.T) {
	env := newEnv(t, "2.0", "1.0", false)
	env.server.feedStatus = http.StatusInternalServerError

	st, err := env.ctrl.CheckForUpdates(context.Background())
	require.Error(t, err)
	assert.Equal(t, updatesvc.PhaseCheckFailed, st.Phase)
	assert.Contains(t, st.Error, "500")
}

func TestController_IgnoreVersion(t *testing.T) {
	env := newEnv(t, "2.0", "1.0", false)
	ctx := context.Background()

	st, err := env.ctrl.CheckForUpdates(ctx)
	require.NoError(t, err)
	assert.False(t, st.Ignored)

	require.NoError(t, env.ctrl.IgnoreVersion(ctx, "2.0"))
	assert.True(t, env.ctrl.Snapshot().Ignored)

	pref, err := env.settings.LoadPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.0", pref.IgnoredUpdateVersion)

	st, err = env.ctrl.CheckForUpdates(ctx)
	require.NoError(t, err)
	assert.True(t, st.UpdateAvailable)
	assert.True(t, st.Ignored)
}

func TestController_DownloadAndInstall(t *testing.T) {
	env := newEnv(t, "2.0", "1.0", false)
	ctx := context.Background()

	// stale partial download from an earlier attempt
	imagePath := filepath.Join(env.tempDir, "Release.dmg")
	require.NoError(t, os.WriteFile(imagePath, []byte("partial"), 0o600))

	updates, cancel := env.ctrl.Subscribe()
	defer cancel()

	_, err := env.ctrl.CheckForUpdates(ctx)
	require.NoError(t, err)
	<-updates

	require.NoError(t, env.ctrl.DownloadAndInstall(ctx))

	assert.Equal(t, []string{"mount", "find", "copy", "unmount"}, env.installer.Calls())
	assert.Equal(t, imageContent, env.installer.image)
	assert.Equal(t, "/Applications", env.installer.copiedTo)
	assert.Equal(t, []int{0}, env.exit.codes)

	_, err = os.Stat(imagePath)
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp image is removed")

	st := env.ctrl.Snapshot()
	assert.Equal(t, updatesvc.PhaseRestarting, st.Phase)
	assert.Equal(t, float64(1), st.Progress)
	assert.Equal(t, updatesvc.PhaseRestarting, (<-updates).Phase)
}

func TestController_DownloadAndInstall_Guards(t *testing.T) {
	env := newEnv(t, "2.0", "1.0", false)
	assert.ErrorIs(t, env.ctrl.DownloadAndInstall(context.Background()), updatesvc.ErrNoRelease)

	env.server.assetName = "Release.zip"
	_, err := env.ctrl.CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, env.ctrl.DownloadAndInstall(context.Background()), updatesvc.ErrNoInstallerAsset)
	assert.Empty(t, env.installer.Calls())
}

func TestController_DownloadAndInstall_Failures(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		env := newEnv(t, "2.0", "1.0", false)
		env.server.dlStatus = http.StatusNotFound

		_, err := env.ctrl.CheckForUpdates(context.Background())
		require.NoError(t, err)

		err = env.ctrl.DownloadAndInstall(context.Background())
		var httpErr *updatesvc.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
		assert.Empty(t, env.installer.Calls())
		assert.Equal(t, updatesvc.PhaseFailed, env.ctrl.Snapshot().Phase)
	})

	t.Run("mount", func(t *testing.T) {
		env := newEnv(t, "2.0", "1.0", false)
		env.installer.mountErr = updatesvc.ErrMountFailed

		_, err := env.ctrl.CheckForUpdates(context.Background())
		require.NoError(t, err)

		err = env.ctrl.DownloadAndInstall(context.Background())
		assert.ErrorIs(t, err, updatesvc.ErrMountFailed)
		assert.Equal(t, []string{"mount"}, env.installer.Calls())
		assert.Empty(t, env.exit.codes)
	})

	t.Run("app not found", func(t *testing.T) {
		env := newEnv(t, "2.0", "1.0", false)
		env.installer.findErr = updatesvc.ErrAppNotFound

		_, err := env.ctrl.CheckForUpdates(context.Background())
		require.NoError(t, err)

		err = env.ctrl.DownloadAndInstall(context.Background())
		assert.ErrorIs(t, err, updatesvc.ErrAppNotFound)
		assert.Equal(t, []string{"mount", "find", "unmount"}, env.installer.Calls())
	})

	t.Run("copy keeps the download", func(t *testing.T) {
		env := newEnv(t, "2.0", "1.0", false)
		env.installer.copyErr = fmt.Errorf("%w: permission denied", updatesvc.ErrCopyFailed)

		_, err := env.ctrl.CheckForUpdates(context.Background())
		require.NoError(t, err)

		err = env.ctrl.DownloadAndInstall(context.Background())
		assert.ErrorIs(t, err, updatesvc.ErrCopyFailed)
		assert.Equal(t, []string{"mount", "find", "copy", "unmount"}, env.installer.Calls())
		assert.Empty(t, env.exit.codes)

		data, err := os.ReadFile(filepath.Join(env.tempDir, "Release.dmg"))
		require.NoError(t, err)
		assert.Equal(t, imageContent, string(data))

		st := env.ctrl.Snapshot()
		assert.Equal(t, updatesvc.PhaseFailed, st.Phase)
		assert.True(t, strings.HasPrefix(st.Error, "copy:"))

		// retry starts over and succeeds
		env.installer.copyErr = nil
		require.NoError(t, env.ctrl.Retry(context.Background()))
		assert.Equal(t, []int{0}, env.exit.codes)
	})
}
