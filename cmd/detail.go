package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/release/container"
	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
)

type DetailCmd struct {
	baseCmd
	platform string
}

var _ cli.Command = (*DetailCmd)(nil)

// NewDetailCmd prints the release notes of every version of one app.
func NewDetailCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &DetailCmd{baseCmd: newBaseCmd("detail", appName, appVersion, ui)}
		c.flags.StringVar(&c.platform, "platform", "", "Only versions of this platform")
		return c, nil
	}
}

func (c *DetailCmd) Help() string {
	return fmt.Sprintf(`Usage: %s detail [options] <app-id>

  Show an app with the localized release notes of each version, newest first.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *DetailCmd) Synopsis() string {
	return "Show the release notes of an app"
}

func (c *DetailCmd) Run(args []string) int {
	if !c.parse(args) {
		return ExitErr
	}

	if c.flags.NArg() != 1 {
		c.ui.Error(c.Help())
		return ExitErr
	}

	platform, err := parsePlatformFlag(c.platform)
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	ctx, dep, err := c.boot()
	defer c.close(ctx, dep)
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	if !c.requireConfigured(dep) {
		return ExitErr
	}

	out, err := dep.Catalog().LoadDetail(ctx, catalogsvc.InputLoadDetail{
		AppID:    c.flags.Arg(0),
		Platform: platform,
	})
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	c.ui.Output(renderDetail(out.Detail))
	for _, failure := range out.Failures {
		c.ui.Warn(fmt.Sprintf("skipped version %s: %s", failure.ID, failure.Error))
	}

	return ExitSuccess
}

func parsePlatformFlag(v string) (entity.Platform, error) {
	if v == "" {
		return "", nil
	}

	platform, ok := entity.ParsePlatform(v)
	if !ok {
		return "", fmt.Errorf("unknown platform '%s'", v)
	}

	return platform, nil
}

// loadEditor loads the app detail into the notes workspace and returns the editor of the app.
func loadEditor(ctx context.Context, dep *container.DefaultContainerImpl, appID string, platform entity.Platform) (*notesvc.Editor, []catalogsvc.ItemFailure, error) {
	out, err := dep.Catalog().LoadDetail(ctx, catalogsvc.InputLoadDetail{
		AppID:    appID,
		Platform: platform,
	})
	if err != nil {
		return nil, nil, err
	}

	editor, err := dep.Notes().Load(out.Detail)
	if err != nil {
		return nil, nil, err
	}

	return editor, out.Failures, nil
}

func renderDetail(detail entity.AppDetail) string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s (%s)\n", detail.Name, detail.BundleID)

	platforms := make([]string, 0, len(detail.Platforms))
	for _, p := range detail.Platforms {
		platforms = append(platforms, p.DisplayName())
	}

	_, _ = fmt.Fprintf(&sb, "Platforms: %s\n", strings.Join(platforms, ", "))
	if detail.SKU != "" {
		_, _ = fmt.Fprintf(&sb, "SKU: %s\n", detail.SKU)
	}

	for _, note := range detail.ReleaseNotes {
		_, _ = fmt.Fprintf(&sb, "\n%s  %s  %s\n", note.Version, note.Platform.DisplayName(), note.Status)
		if len(note.LocalizedNotes) == 0 {
			sb.WriteString("  (no localizations)\n")
			continue
		}

		for _, l := range note.LocalizedNotes {
			_, _ = fmt.Fprintf(&sb, "  [%s] %s\n", l.Locale, l.DisplayName())
			sb.WriteString(indent(l.Notes, "    "))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func indent(text, prefix string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return prefix + "(empty)\n"
	}

	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
