package updatesvc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const attachOutput = "/dev/disk4          \tGUID_partition_scheme          \t\n" +
	"/dev/disk4s1        \tApple_HFS                      \t/Volumes/Release 1.2\n"

func TestHdiutilInstaller_Mount(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var gotArgs []string
		h := &HdiutilInstaller{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte(attachOutput), nil
		}}

		mountPoint, err := h.Mount(context.Background(), "/tmp/Release.dmg")
		require.NoError(t, err)
		assert.Equal(t, "/Volumes/Release 1.2", mountPoint)
		assert.Equal(t, []string{"hdiutil", "attach", "-nobrowse", "-noautoopen", "/tmp/Release.dmg"}, gotArgs)
	})

	t.Run("command fails", func(t *testing.T) {
		h := &HdiutilInstaller{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("hdiutil: attach failed - image not recognized"), errors.New("exit status 1")
		}}

		_, err := h.Mount(context.Background(), "/tmp/Release.dmg")
		assert.ErrorIs(t, err, ErrMountFailed)
		assert.Contains(t, err.Error(), "image not recognized")
	})

	t.Run("no volume", func(t *testing.T) {
		h := &HdiutilInstaller{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("/dev/disk4\tGUID_partition_scheme\t\n"), nil
		}}

		_, err := h.Mount(context.Background(), "/tmp/Release.dmg")
		assert.ErrorIs(t, err, ErrVolumeNotFound)
	})
}

func TestHdiutilInstaller_FindApp(t *testing.T) {
	volume := t.TempDir()
	h := NewHdiutilInstaller()

	_, err := h.FindApp(volume)
	assert.ErrorIs(t, err, ErrAppNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(volume, "README.app"), []byte("file, not a bundle"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(volume, "Release.app"), 0o700))

	app, err := h.FindApp(volume)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(volume, "Release.app"), app)

	_, err = h.FindApp(filepath.Join(volume, "missing"))
	assert.ErrorIs(t, err, ErrVolumeNotFound)
}

func TestHdiutilInstaller_CopyAndUnmount(t *testing.T) {
	var calls [][]string
	h := &HdiutilInstaller{Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		if name == "ditto" {
			return []byte("ditto: Permission denied"), errors.New("exit status 1")
		}

		return nil, nil
	}}

	err := h.Copy(context.Background(), "/Volumes/Release/Release.app", "/Applications")
	assert.ErrorIs(t, err, ErrCopyFailed)
	assert.NoError(t, h.Unmount(context.Background(), "/Volumes/Release"))

	assert.Equal(t, [][]string{
		{"ditto", "/Volumes/Release/Release.app", "/Applications/Release.app"},
		{"hdiutil", "detach", "/Volumes/Release", "-quiet"},
	}, calls)
}

func TestInstallDir(t *testing.T) {
	dir, err := InstallDir("/Applications/Release.app/Contents/MacOS/Release")
	require.NoError(t, err)
	assert.Equal(t, "/Applications", dir)

	_, err = InstallDir("/usr/local/bin/release")
	assert.Error(t, err)
}

func TestProgressWriter(t *testing.T) {
	var reported []float64
	w := &progressWriter{total: 100, report: func(p float64) { reported = append(reported, p) }}

	for i := 0; i < 20; i++ {
		_, _ = w.Write(make([]byte, 5))
	}

	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}, reported)

	unknown := &progressWriter{report: func(p float64) { t.Fatal("no total, no report") }}
	_, _ = unknown.Write(make([]byte, 10))
}
