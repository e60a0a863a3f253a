package main

import (
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/release/cmd"
	"github.com/yusufsyaifudin/release/container"
)

func main() {
	const appName = "release"
	appVersion := container.Version

	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	serveCmd := cmd.NewServeCmd(appName, appVersion, ui)

	c := cli.NewCLI(appName, appVersion)
	c.Args = os.Args[1:]
	c.Autocomplete = true
	c.Commands = map[string]cli.CommandFactory{
		"":          serveCmd, // default command if no subcommand defined
		"serve":     serveCmd,
		"apps":      cmd.NewAppsCmd(appName, appVersion, ui),
		"detail":    cmd.NewDetailCmd(appName, appVersion, ui),
		"notes":     cmd.NewNotesCmd(appName, appVersion, ui),
		"update":    cmd.NewUpdateCmd(appName, appVersion, ui),
		"configure": cmd.NewConfigureCmd(appName, appVersion, ui),
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}
