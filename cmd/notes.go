package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/release/internal/svc/notesvc"
)

type NotesCmd struct {
	baseCmd
	platform string
	template string
	previous bool
	upload   bool
	sets     map[string]string
}

var _ cli.Command = (*NotesCmd)(nil)

// NewNotesCmd edits the release notes of the current version of an app and optionally uploads them.
func NewNotesCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &NotesCmd{
			baseCmd: newBaseCmd("notes", appName, appVersion, ui),
			sets:    map[string]string{},
		}

		c.flags.StringVar(&c.platform, "platform", "", "Edit the current version of this platform")
		c.flags.StringVar(&c.template, "template", "", "Write this text into every locale")
		c.flags.BoolVar(&c.previous, "previous", false, "Copy the previous version's notes into the shared locales")
		c.flags.BoolVar(&c.upload, "upload", false, "Upload every changed locale")
		c.flags.Func("set", "Set one locale, as locale=text; repeatable", func(v string) error {
			locale, text, ok := strings.Cut(v, "=")
			if !ok || strings.TrimSpace(locale) == "" {
				return fmt.Errorf("expected locale=text, got '%s'", v)
			}

			c.sets[strings.TrimSpace(locale)] = text
			return nil
		})
		return c, nil
	}
}

func (c *NotesCmd) Help() string {
	return fmt.Sprintf(`Usage: %s notes [options] <app-id>

  Edit the release notes of the version currently being prepared.
  Edits are applied in order: -previous, -template, then each -set.
  Without -upload nothing is sent and the edits are only shown.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *NotesCmd) Synopsis() string {
	return "Edit and upload release notes"
}

func (c *NotesCmd) Run(args []string) int {
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

	editor, failures, err := loadEditor(ctx, dep, c.flags.Arg(0), platform)
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	for _, failure := range failures {
		c.ui.Warn(fmt.Sprintf("skipped version %s: %s", failure.ID, failure.Error))
	}

	state := editor.Snapshot()
	if state.VersionID == "" {
		c.ui.Error("the app has no versions")
		return ExitErr
	}

	if c.previous {
		updated, err := editor.FetchPreviousVersionNotes(ctx)
		if err != nil {
			c.ui.Error(fmt.Sprintf("copy previous notes: %s", err))
			return ExitErr
		}

		c.ui.Info(fmt.Sprintf("copied %d locale(s) from the previous version", updated))
	}

	if c.template != "" {
		if err = editor.ApplyTemplateToAll(c.template); err != nil {
			c.ui.Error(fmt.Sprintf("apply template: %s", err))
			return ExitErr
		}
	}

	locales := make([]string, 0, len(c.sets))
	for locale := range c.sets {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	for _, locale := range locales {
		if err = editor.SetText(locale, c.sets[locale]); err != nil {
			c.ui.Error(fmt.Sprintf("set %s: %s", locale, err))
			return ExitErr
		}
	}

	state = editor.Snapshot()
	c.ui.Output(renderEditor(state))

	if !c.upload {
		if state.HasChanges() {
			c.ui.Warn("changes are not uploaded, pass -upload to send them")
		}

		return ExitSuccess
	}

	report, err := editor.UploadAll(ctx)
	for _, locale := range report.Uploaded {
		c.ui.Info(fmt.Sprintf("uploaded %s", locale))
	}

	if err != nil {
		for locale, msg := range report.Failed {
			c.ui.Error(fmt.Sprintf("failed %s: %s", locale, msg))
		}

		if len(report.Failed) == 0 {
			c.ui.Error(err.Error())
		}

		return ExitErr
	}

	return ExitSuccess
}

func renderEditor(state notesvc.EditorState) string {
	var sb strings.Builder

	mode := "editable"
	if !state.Editable {
		mode = "read only"
	}

	_, _ = fmt.Fprintf(&sb, "Version %s (%s)\n\n", state.Version, mode)

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LOCALE\tLANGUAGE\tSTATUS\tTEXT")
	for _, l := range state.Locales {
		text := strings.ReplaceAll(strings.TrimSpace(l.Text), "\n", " / ")
		if runes := []rune(text); len(runes) > 60 {
			text = string(runes[:57]) + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Locale, l.DisplayName, l.Status, text)
	}

	_ = w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
