package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/catalog"
	"github.com/savaki/sso-frontend/internal/di"
	"github.com/savaki/sso-frontend/internal/services"
	"github.com/urfave/cli/v2"
)

// CatalogCommand returns the catalog command for inspecting service bindings
func CatalogCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Inspect the service catalog the server resolves credentials from",
		Description: `Reads the catalog from the configured source (env, ssm, secretsmanager or file).

Credential values are never printed.

Examples:
  # List bindings from VCAP_SERVICES
  sso-frontend catalog list --disable-ssm

  # Check which identity provider the server would use
  sso-frontend --env prd catalog resolve --label p-identity`,
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List bound services with credentials redacted",
				Flags:   []cli.Flag{disableSSMFlag()},
				Action: func(c *cli.Context) error {
					return listCatalog(c, logger)
				},
			},
			{
				Name:  "resolve",
				Usage: "Resolve provider credentials for a service label",
				Flags: []cli.Flag{
					disableSSMFlag(),
					&cli.StringFlag{
						Name:  "label",
						Usage: "Service label (defaults to the configured label)",
					},
				},
				Action: func(c *cli.Context) error {
					return resolveCatalog(c, logger)
				},
			},
		},
	}
}

func listCatalog(c *cli.Context, logger *zerolog.Logger) error {
	container, err := newContainer(c)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	source := di.MustGet[catalog.Source](container)
	current, err := source.Load(c.Context)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	logger.Info().Int("bindings", len(current.Bindings)).Msg("Catalog loaded")
	return printJSON(current.Summaries())
}

func resolveCatalog(c *cli.Context, logger *zerolog.Logger) error {
	container, err := newContainer(c)
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}

	label := c.String("label")
	if label == "" {
		label = di.MustGet[*services.Config](container).ServiceLabel
	}

	creds, err := di.MustGet[*catalog.Resolver](container).Resolve(c.Context, label)
	if err != nil {
		return err
	}

	logger.Info().Str("label", label).Msg("Service resolved")
	return printJSON(map[string]string{
		"label":     label,
		"domain":    creds.Domain,
		"client_id": creds.ClientID,
	})
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
