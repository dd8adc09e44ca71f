package commands

import (
	"os"

	"github.com/savaki/sso-frontend/internal/di"
	"github.com/urfave/cli/v2"
)

// newContainer builds the DI container from the global flags. Commands never
// issue cookies, so session keys are not fetched.
func newContainer(c *cli.Context) (di.Container, error) {
	if c.Bool("disable-ssm") {
		if err := os.Setenv("DISABLE_SSM", "true"); err != nil {
			return nil, err
		}
	}

	return di.New(c.String("env"),
		di.WithLocalDev(true),
		di.WithAWSEndpoint(c.String("aws-endpoint")),
	)
}

func disableSSMFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "disable-ssm",
		Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
		EnvVars: []string{"DISABLE_SSM"},
	}
}
