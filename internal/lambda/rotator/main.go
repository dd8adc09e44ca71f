package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/di"
	"github.com/savaki/sso-frontend/internal/services"
	"github.com/urfave/cli/v2"
)

func newRotator() (*services.SessionKeyRotator, error) {
	container, err := di.New(os.Getenv("ENV"))
	if err != nil {
		return nil, fmt.Errorf("failed to setup DI container: %w", err)
	}

	cfg := di.MustGet[aws.Config](container)
	return services.NewSessionKeyRotator(secretsmanager.NewFromConfig(cfg)), nil
}

func handleRotateCommand(c *cli.Context) error {
	logger := *zerolog.Ctx(c.Context)

	rotator, err := newRotator()
	if err != nil {
		return err
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(func(ctx context.Context, event services.RotationEvent) error {
			return rotator.HandleRotation(logger.WithContext(ctx), event)
		})
		return nil
	}

	secretID := c.String("secret-id")
	token := fmt.Sprintf("manual-%d", time.Now().Unix())
	if err := rotator.Rotate(c.Context, secretID, token); err != nil {
		return err
	}

	logger.Info().Str("secret_id", secretID).Str("version_id", token).Msg("Rotation completed successfully")
	return nil
}

func handleCancelRotationCommand(c *cli.Context) error {
	rotator, err := newRotator()
	if err != nil {
		return err
	}

	secretID := c.String("secret-id")
	if err := rotator.CancelPending(c.Context, secretID, c.String("version-id")); err != nil {
		return err
	}

	zerolog.Ctx(c.Context).Info().Str("secret_id", secretID).Msg("Cancelled pending rotation")
	return nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "rotator").Logger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:           "rotator",
		Usage:          "Secrets Manager rotation function for session cookie keys",
		DefaultCommand: "rotate",
		Commands: []*cli.Command{
			{
				Name:  "rotate",
				Usage: "Rotate the session keys (Lambda handler when deployed)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "secret-id",
						Usage:   "Secret ID to rotate (ignored in Lambda)",
						EnvVars: []string{"SECRET_ID"},
					},
				},
				Action: handleRotateCommand,
			},
			{
				Name:  "cancel-rotation",
				Usage: "Cancel a pending rotation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret-id",
						Usage:    "Secret ID with pending rotation",
						Required: true,
						EnvVars:  []string{"SECRET_ID"},
					},
					&cli.StringFlag{
						Name:     "version-id",
						Usage:    "Version ID of the pending rotation to cancel",
						Required: true,
					},
				},
				Action: handleCancelRotationCommand,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
