package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/cli"
	"github.com/schollz/progressbar/v3"
	"github.com/yusufsyaifudin/release/internal/svc/updatesvc"
)

type UpdateCmd struct {
	baseCmd
	install bool
	ignore  bool
}

var _ cli.Command = (*UpdateCmd)(nil)

// NewUpdateCmd checks the release feed and optionally installs the latest release.
func NewUpdateCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &UpdateCmd{baseCmd: newBaseCmd("update", appName, appVersion, ui)}
		c.flags.BoolVar(&c.install, "install", false, "Download and install the latest release when it is newer")
		c.flags.BoolVar(&c.ignore, "ignore", false, "Do not flag the latest release as an update anymore")
		return c, nil
	}
}

func (c *UpdateCmd) Help() string {
	return fmt.Sprintf(`Usage: %s update [options]

  Check whether a newer release is published. With -install the disk image is
  downloaded, the bundled application replaces the running one and the
  process exits.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *UpdateCmd) Synopsis() string {
	return "Check for and install a newer release"
}

func (c *UpdateCmd) Run(args []string) int {
	if !c.parse(args) {
		return ExitErr
	}

	ctx, dep, err := c.boot()
	defer c.close(ctx, dep)
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	updater := dep.Updater()
	state, err := updater.CheckForUpdates(ctx)
	if err != nil {
		c.ui.Error(fmt.Sprintf("check for updates: %s", err))
		return ExitErr
	}

	c.ui.Output(describeUpdate(state))

	if c.ignore && state.Latest != nil {
		if err = updater.IgnoreVersion(ctx, state.Latest.TagName); err != nil {
			c.ui.Error(err.Error())
			return ExitErr
		}

		c.ui.Info(fmt.Sprintf("release %s will be ignored", state.Latest.TagName))
		return ExitSuccess
	}

	if !c.install || !state.UpdateAvailable {
		return ExitSuccess
	}

	asset, _ := state.Latest.InstallerAsset(updater.Config.AssetExtension)
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %s (%s)", asset.Name, humanize.Bytes(uint64(asset.Size)))),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(os.Stderr)
		}),
	)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.watchProgress(watchCtx, updater, bar)

	// on success the process exits inside DownloadAndInstall
	if err = updater.DownloadAndInstall(ctx); err != nil {
		c.ui.Error(fmt.Sprintf("update failed: %s", err))
		return ExitErr
	}

	return ExitSuccess
}

func (c *UpdateCmd) watchProgress(ctx context.Context, updater *updatesvc.Controller, bar *progressbar.ProgressBar) {
	updates, unsubscribe := updater.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return

		case st := <-updates:
			switch st.Phase {
			case updatesvc.PhaseDownloading:
				_ = bar.Set(int(st.Progress * 100))

			case updatesvc.PhaseInstalling:
				_ = bar.Finish()
				c.ui.Info("installing...")

			case updatesvc.PhaseRestarting:
				c.ui.Info("installed, restarting")
			}
		}
	}
}

func describeUpdate(state updatesvc.State) string {
	if state.Latest == nil {
		return fmt.Sprintf("Running %s, no release found", state.CurrentVersion)
	}

	out := fmt.Sprintf("Running %s, latest release %s", state.CurrentVersion, state.Latest.TagName)
	switch {
	case state.UpdateAvailable && state.Ignored:
		out += " (update available, ignored)"
	case state.UpdateAvailable:
		out += " (update available)"
	default:
		out += " (up to date)"
	}

	for _, a := range state.Latest.Assets {
		out += fmt.Sprintf("\n  %s  %s", a.Name, humanize.Bytes(uint64(a.Size)))
	}

	return out
}
