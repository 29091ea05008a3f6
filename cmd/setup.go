package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/nrx/internal/auth"
	"github.com/desertthunder/nrx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Init writes the embedded example configuration to the --config path.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("force") {
		if err := os.Remove(r.configPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Wrote %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Create an app at https://developer.spotify.com/dashboard\n")
	r.writePlain("2. Fill in client_id, client_secret and redirect_uri under [credentials.spotify]\n")
	r.writePlain("3. Run 'nrx setup' to check the configuration\n")
	return nil
}

// Setup validates the configuration, migrates the run history database and
// prints what the Spotify app registration must contain.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer closeDB(r.logger, db)

	version, err := shared.CurrentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	sp := r.config.Credentials.Spotify
	scopes := sp.Scopes
	if len(scopes) == 0 {
		scopes = auth.DefaultScopes
	}
	owner := sp.UserID
	if owner == "" {
		owner = "(signed-in user)"
	}

	r.writePlainHeader("Configuration OK")
	r.writePlain("Client ID:     %s\n", sp.ClientID)
	r.writePlain("Redirect URI:  %s\n", sp.RedirectURI)
	r.writePlain("Scopes:        %s\n", strings.Join(scopes, " "))
	r.writePlain("Owner:         %s\n", owner)
	r.writePlain("Window:        %d days\n", r.config.Aggregator.WindowDays)
	r.writePlain("Database:      %s (schema v%d)\n", r.config.Database.Path, version)
	r.writePlainln("Add the redirect URI above to your Spotify app, then run 'nrx run'.")
	return nil
}
