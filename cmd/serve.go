package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/release/extd"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/zap/zapcore"
)

type ServeCmd struct {
	baseCmd
	port int
}

var _ cli.Command = (*ServeCmd)(nil)

// NewServeCmd starts the REST api.
func NewServeCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &ServeCmd{baseCmd: newBaseCmd("serve", appName, appVersion, ui)}
		c.flags.IntVar(&c.port, "port", 0, "Port to listen on, overrides the config")
		return c, nil
	}
}

func (c *ServeCmd) Help() string {
	return fmt.Sprintf(`Usage: %s serve [options]

  Serve the catalog, release notes editor, updater and settings over HTTP.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *ServeCmd) Synopsis() string {
	return "Serve the REST api"
}

func (c *ServeCmd) Run(args []string) int {
	if !c.parse(args) {
		return ExitErr
	}

	ctx := extd.SetupLog(context.Background(), os.Stdout, zapcore.DebugLevel)

	cfg, err := c.loadConfig(ctx)
	if err != nil {
		ylog.Error(ctx, "config preparation: failed", ylog.KV("error", err))
		return ExitErr
	}

	if c.port > 0 {
		cfg.Transport.HTTP.Port = c.port
	}

	if err = extd.RunServer(ctx, cfg); err != nil {
		return ExitErr
	}

	return ExitSuccess
}
