package commands

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/di"
	"github.com/savaki/sso-frontend/internal/services"
	"github.com/urfave/cli/v2"
)

// ConfigCommand returns the config command for checking deployed configuration
func ConfigCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the configuration the server would load",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the resolved configuration and the AWS identity reading it",
				Flags: []cli.Flag{
					disableSSMFlag(),
					&cli.BoolFlag{
						Name:  "skip-identity",
						Usage: "Do not call STS GetCallerIdentity",
					},
				},
				Action: func(c *cli.Context) error {
					return showConfig(c, logger)
				},
			},
		},
	}
}

type configView struct {
	Env      string           `json:"env"`
	Identity string           `json:"identity,omitempty"`
	Account  string           `json:"account,omitempty"`
	Config   *services.Config `json:"config"`
}

func showConfig(c *cli.Context, logger *zerolog.Logger) error {
	container, err := newContainer(c)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	view := configView{
		Env:    c.String("env"),
		Config: di.MustGet[*services.Config](container),
	}

	if !c.Bool("skip-identity") {
		client := di.MustGet[*sts.Client](container)
		identity, err := client.GetCallerIdentity(c.Context, &sts.GetCallerIdentityInput{})
		if err != nil {
			return fmt.Errorf("failed to get caller identity: %w", err)
		}
		view.Identity = aws.ToString(identity.Arn)
		view.Account = aws.ToString(identity.Account)
	}

	logger.Info().Str("env", view.Env).Msg("Configuration resolved")
	return printJSON(view)
}
