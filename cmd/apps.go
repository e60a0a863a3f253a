package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/cli"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/release/internal/entity"
	"github.com/yusufsyaifudin/release/internal/svc/catalogsvc"
)

type AppsCmd struct {
	baseCmd
	platform string
	asJSON   bool
}

var _ cli.Command = (*AppsCmd)(nil)

// NewAppsCmd refreshes the catalog and prints one row per app and platform.
func NewAppsCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &AppsCmd{baseCmd: newBaseCmd("apps", appName, appVersion, ui)}
		c.flags.StringVar(&c.platform, "platform", "", "Only show rows of this platform, e.g. iOS or MAC_OS")
		c.flags.BoolVar(&c.asJSON, "json", false, "Print the catalog state as JSON")
		return c, nil
	}
}

func (c *AppsCmd) Help() string {
	return fmt.Sprintf(`Usage: %s apps [options]

  Load every app with its latest version and status.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *AppsCmd) Synopsis() string {
	return "List apps with their latest version and status"
}

func (c *AppsCmd) Run(args []string) int {
	if !c.parse(args) {
		return ExitErr
	}

	var platform entity.Platform
	if c.platform != "" {
		var ok bool
		if platform, ok = entity.ParsePlatform(c.platform); !ok {
			c.ui.Error(fmt.Sprintf("unknown platform '%s'", c.platform))
			return ExitErr
		}
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

	state, err := dep.Catalog().Refresh(ctx)
	if err != nil {
		c.ui.Error(fmt.Sprintf("error loading apps: %s", err))
		return ExitErr
	}

	if platform != "" {
		rows := make([]entity.AppRecord, 0, len(state.Rows))
		for _, row := range state.Rows {
			if row.Platform() == platform {
				rows = append(rows, row)
			}
		}

		state.Rows = rows
	}

	if c.asJSON {
		b, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			c.ui.Error(err.Error())
			return ExitErr
		}

		c.ui.Output(string(b))
		return ExitSuccess
	}

	c.ui.Output(renderRows(state.Rows))
	c.ui.Info(summarize(state))
	for _, failure := range state.Failures {
		c.ui.Warn(fmt.Sprintf("skipped app %s: %s", failure.ID, failure.Error))
	}

	return ExitSuccess
}

func renderRows(rows []entity.AppRecord) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPLATFORM\tVERSION\tSTATUS\tMODIFIED\tAPP ID")
	for _, row := range rows {
		modified := "-"
		if row.LastModified != nil {
			modified = humanize.Time(*row.LastModified)
		}

		version := row.Version
		if version == "" {
			version = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Name, row.Platform().DisplayName(), version, row.Status, modified, row.AppID)
	}

	_ = w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

func summarize(state catalogsvc.State) string {
	return fmt.Sprintf("%d/%d app(s) processed, %d row(s)", state.ProcessedApps, state.TotalApps, len(state.Rows))
}
