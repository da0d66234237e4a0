package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/portage/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example config to disk so the operator
// can fill in provider credentials.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Config written to %s\n", configPath)
	r.writePlain("Fill in provider credentials, then run 'portage setup database'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	if err := r.openStore(); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	return nil
}
