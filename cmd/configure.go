package cmd

import (
	"errors"
	"fmt"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/release/internal/svc/settingsrepo"
	"github.com/yusufsyaifudin/release/pkg/ascauth"
)

type ConfigureCmd struct {
	baseCmd
	issuerID string
	keyID    string
	keyFile  string
	clear    bool
	test     bool
}

var _ cli.Command = (*ConfigureCmd)(nil)

// NewConfigureCmd stores the App Store Connect API credentials.
func NewConfigureCmd(appName, appVersion string, ui cli.Ui) cli.CommandFactory {
	return func() (cli.Command, error) {
		c := &ConfigureCmd{baseCmd: newBaseCmd("configure", appName, appVersion, ui)}
		c.flags.StringVar(&c.issuerID, "issuer", "", "Issuer ID")
		c.flags.StringVar(&c.keyID, "key-id", "", "Private key ID")
		c.flags.StringVar(&c.keyFile, "key-file", "", "Path of the .p8 private key, prompted for when empty")
		c.flags.BoolVar(&c.clear, "clear", false, "Remove the stored credentials")
		c.flags.BoolVar(&c.test, "test", false, "Call the API with the resulting credentials")
		return c, nil
	}
}

func (c *ConfigureCmd) Help() string {
	return fmt.Sprintf(`Usage: %s configure [options]

  Store the App Store Connect API credentials. Without options the current
  state is shown.

Options:
%s`, c.appName, c.flagHelp())
}

func (c *ConfigureCmd) Synopsis() string {
	return "Store App Store Connect credentials"
}

func (c *ConfigureCmd) Run(args []string) int {
	if !c.parse(args) {
		return ExitErr
	}

	ctx, dep, err := c.boot()
	defer c.close(ctx, dep)
	if err != nil {
		c.ui.Error(err.Error())
		return ExitErr
	}

	switch {
	case c.clear:
		if err = dep.ClearCredentials(ctx); err != nil {
			c.ui.Error(fmt.Sprintf("clear credentials: %s", err))
			return ExitErr
		}

		c.ui.Info("credentials removed")

	case c.issuerID != "" || c.keyID != "" || c.keyFile != "":
		cred := ascauth.Credentials{IssuerID: c.issuerID, PrivateKeyID: c.keyID}
		if c.keyFile != "" {
			cred.PrivateKey, err = settingsrepo.ReadPrivateKeyFile(c.keyFile)
		} else {
			cred.PrivateKey, err = c.ui.AskSecret("Private key (PEM or base64 body):")
		}

		if err != nil {
			c.ui.Error(fmt.Sprintf("read private key: %s", err))
			return ExitErr
		}

		if err = dep.SaveCredentials(ctx, cred); err != nil {
			c.ui.Error(fmt.Sprintf("save credentials: %s", err))
			return ExitErr
		}

		c.ui.Info("credentials saved")

	default:
		stored, err := dep.Settings().LoadCredentials(ctx)
		switch {
		case errors.Is(err, settingsrepo.ErrNotConfigured):
			c.ui.Output("no credentials stored")
		case err != nil:
			c.ui.Error(err.Error())
			return ExitErr
		default:
			c.ui.Output(fmt.Sprintf("issuer %s, key %s", stored.IssuerID, stored.PrivateKeyID))
		}

		c.ui.Output(fmt.Sprintf("configured: %t", dep.Configured()))
	}

	if !c.test {
		return ExitSuccess
	}

	if !dep.CatalogRepo().TestConnection(ctx) {
		c.ui.Error("connection test failed")
		return ExitErr
	}

	c.ui.Info("connection test succeeded")
	return ExitSuccess
}
