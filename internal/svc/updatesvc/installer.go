package updatesvc

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Installer attaches an installer image and copies the bundled application out of it.
type Installer interface {
	Mount(ctx context.Context, imagePath string) (mountPoint string, err error)
	FindApp(mountPoint string) (appPath string, err error)
	Copy(ctx context.Context, appPath, destDir string) error
	Unmount(ctx context.Context, mountPoint string) error
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HdiutilInstaller uses hdiutil to attach disk images and ditto to copy the bundle.
type HdiutilInstaller struct {
	Run CommandRunner
}

var _ Installer = (*HdiutilInstaller)(nil)

func NewHdiutilInstaller() *HdiutilInstaller {
	return &HdiutilInstaller{Run: execRunner}
}

func (h *HdiutilInstaller) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if h.Run == nil {
		return execRunner(ctx, name, args...)
	}

	return h.Run(ctx, name, args...)
}

func (h *HdiutilInstaller) Mount(ctx context.Context, imagePath string) (string, error) {
	out, err := h.run(ctx, "hdiutil", "attach", "-nobrowse", "-noautoopen", imagePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrMountFailed, err, strings.TrimSpace(string(out)))
	}

	mountPoint := parseMountPoint(out)
	if mountPoint == "" {
		return "", ErrVolumeNotFound
	}

	return mountPoint, nil
}

// parseMountPoint picks the /Volumes path from hdiutil attach output.
// Each line is tab separated: device, partition type, mount point (only for mounted partitions).
func parseMountPoint(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, "/Volumes/")
		if idx < 0 {
			continue
		}

		return strings.TrimSpace(line[idx:])
	}

	return ""
}

func (h *HdiutilInstaller) FindApp(mountPoint string) (string, error) {
	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrVolumeNotFound, err)
	}

	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".app") {
			return filepath.Join(mountPoint, e.Name()), nil
		}
	}

	return "", ErrAppNotFound
}

func (h *HdiutilInstaller) Copy(ctx context.Context, appPath, destDir string) error {
	dest := filepath.Join(destDir, filepath.Base(appPath))
	out, err := h.run(ctx, "ditto", appPath, dest)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrCopyFailed, err, strings.TrimSpace(string(out)))
	}

	return nil
}

func (h *HdiutilInstaller) Unmount(ctx context.Context, mountPoint string) error {
	out, err := h.run(ctx, "hdiutil", "detach", mountPoint, "-quiet")
	if err != nil {
		return fmt.Errorf("detach %s: %s: %s", mountPoint, err, strings.TrimSpace(string(out)))
	}

	return nil
}

// InstallDir returns the directory holding the .app bundle that contains executable.
func InstallDir(executable string) (string, error) {
	dir := filepath.Clean(executable)
	for {
		if strings.HasSuffix(dir, ".app") {
			return filepath.Dir(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s is not inside an application bundle", executable)
		}

		dir = parent
	}
}
