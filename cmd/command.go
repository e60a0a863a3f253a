package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/sethvargo/go-envconfig"
	"github.com/yusufsyaifudin/release/container"
	"github.com/yusufsyaifudin/release/extd"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/zap/zapcore"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

// baseCmd carries what every command shares: the config flag, verbosity and the output Ui.
type baseCmd struct {
	flags      *flag.FlagSet
	ui         cli.Ui
	appName    string
	appVersion string
	configFile string
	verbose    bool
}

func newBaseCmd(name, appName, appVersion string, ui cli.Ui) baseCmd {
	if ui == nil {
		ui = &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		}
	}

	c := baseCmd{
		flags:      flag.NewFlagSet(name, flag.ContinueOnError),
		ui:         ui,
		appName:    appName,
		appVersion: appVersion,
	}

	c.flags.SetOutput(io.Discard)
	c.flags.StringVar(&c.configFile, "config", "", "Config file to load, defaults to ./"+container.DefaultConfigFile+" when present")
	c.flags.StringVar(&c.configFile, "c", "", "Alias for config file to load")
	c.flags.BoolVar(&c.verbose, "v", false, "Write debug logs to stderr")
	return c
}

// parse parses args and reports flag errors on the Ui.
func (c *baseCmd) parse(args []string) bool {
	if err := c.flags.Parse(args); err != nil {
		c.ui.Error(fmt.Sprintf("error parsing arguments: %s", err))
		return false
	}

	return true
}

func (c *baseCmd) configPath() string {
	if c.configFile != "" {
		return c.configFile
	}

	if _, err := os.Stat(container.DefaultConfigFile); err == nil {
		return container.DefaultConfigFile
	}

	return ""
}

// logContext sets up logging to stderr so command output stays readable.
func (c *baseCmd) logContext() context.Context {
	level := zapcore.WarnLevel
	if c.verbose {
		level = zapcore.DebugLevel
	}

	return extd.SetupLog(context.Background(), os.Stderr, level)
}

func (c *baseCmd) loadConfig(ctx context.Context) (container.Config, error) {
	cfg, err := container.LoadConfig(ctx, c.configPath(), envconfig.OsLookuper())
	if err != nil {
		return cfg, fmt.Errorf("error load config: %w", err)
	}

	return cfg, nil
}

// boot loads the config and builds the container. The caller must Close the container.
func (c *baseCmd) boot() (ctx context.Context, dep *container.DefaultContainerImpl, err error) {
	ctx = c.logContext()

	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return
	}

	dep, err = container.Setup(ctx, cfg)
	if err != nil {
		err = fmt.Errorf("error setup dependencies: %w", err)
		return
	}

	return
}

func (c *baseCmd) close(ctx context.Context, dep *container.DefaultContainerImpl) {
	if dep == nil {
		return
	}

	if err := dep.Close(); err != nil {
		ylog.Error(ctx, "error close container", ylog.KV("error", err))
	}
}

// requireConfigured prints a hint and returns false when no credentials are set.
func (c *baseCmd) requireConfigured(dep *container.DefaultContainerImpl) bool {
	if dep.Configured() {
		return true
	}

	c.ui.Error(fmt.Sprintf("App Store Connect credentials are not configured, run '%s configure' first", c.appName))
	return false
}

// flagHelp renders the defaults of the flag set for Help().
func (c *baseCmd) flagHelp() string {
	var sb strings.Builder
	c.flags.SetOutput(&sb)
	c.flags.PrintDefaults()
	c.flags.SetOutput(io.Discard)
	return sb.String()
}
