package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/cmd/sso-frontend/commands"
	"github.com/savaki/sso-frontend/internal/di"
	"github.com/savaki/sso-frontend/internal/web"
	"github.com/urfave/cli/v2"
)

func newHandler(container di.Container) http.Handler {
	logger := di.MustGet[zerolog.Logger](container)
	pathBase := di.MustGet[di.PathBase](container)
	trustProxy := di.MustGet[di.TrustProxy](container)
	handler := di.MustGet[*web.Handler](container)

	return handler.Routes(logger, string(pathBase), bool(trustProxy))
}

// serveAction starts a local HTTP server
func serveAction(c *cli.Context) error {
	addr := fmt.Sprintf(":%s", c.String("port"))
	env := c.String("env")
	pathBase := c.String("path-base")
	localDev := c.Bool("local-dev")

	if c.Bool("disable-ssm") {
		// the parameter store provider reads this directly
		if err := os.Setenv("DISABLE_SSM", "true"); err != nil {
			return err
		}
	}

	container, err := di.New(env,
		di.WithPathBase(pathBase),
		di.WithLocalDev(localDev),
		di.WithTrustProxy(c.Bool("trust-proxy")),
		di.WithAWSEndpoint(c.String("aws-endpoint")),
	)
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	logger := di.MustGet[zerolog.Logger](container)
	if localDev {
		logger.Warn().Msg("Local development mode - cookies are not marked Secure")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           newHandler(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", addr).
		Str("env", env).
		Str("path_base", pathBase).
		Msg("Starting HTTP server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func lambdaMain(logger zerolog.Logger) {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		logger.Error().Msg("ENV or ENVIRONMENT variable is required")
		os.Exit(1)
	}

	// API Gateway stages are mounted under /{env} unless told otherwise
	pathBase, ok := os.LookupEnv("PATH_BASE")
	if !ok {
		pathBase = "/" + env
	}

	// API Gateway sets X-Forwarded-Proto itself
	container, err := di.New(env, di.WithPathBase(pathBase), di.WithTrustProxy(true))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to setup DI container")
		os.Exit(1)
	}

	logger.Info().
		Str("env", env).
		Str("path_base", pathBase).
		Msg("Initializing Lambda handler")

	lambda.Start(httpadapter.NewV2(newHandler(container)).ProxyWithContext)
}

func main() {
	logger := di.ProvideLogger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambdaMain(logger.With().Str("lambda", "sso-frontend").Logger())
		return
	}

	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "sso-frontend",
		Usage: "OpenID Connect sign-in front end backed by a service catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (selects the /{env}/sso-frontend parameter path)",
				Value:   "dev",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "aws-endpoint",
				Usage:   "Override the AWS endpoint (e.g. http://localhost:4566)",
				EnvVars: []string{"AWS_ENDPOINT_OVERRIDE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Usage:   "Port to listen on",
						Value:   "8080",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:    "path-base",
						Usage:   "Prefix the application is mounted under",
						EnvVars: []string{"PATH_BASE"},
					},
					&cli.BoolFlag{
						Name:    "local-dev",
						Usage:   "Plain-HTTP cookies and ephemeral session keys (local development only)",
						EnvVars: []string{"LOCAL_DEV"},
					},
					&cli.BoolFlag{
						Name:    "trust-proxy",
						Usage:   "Honour X-Forwarded-Proto (only behind a router that overwrites it)",
						EnvVars: []string{"TRUST_PROXY"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction,
			},
			commands.CatalogCommand(&logger),
			commands.ConfigCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
