package main

import (
	"context"
	"fmt"

	"noticeboard/internal/db"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var initDBCommand = &cli.Command{
	Name:  "initdb",
	Usage: "Create the database schema and seed the admin user",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		database, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		logrus.WithField("path", cfg.DatabasePath).Info("Connected to database")

		if err := db.Bootstrap(ctx, database, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap database: %w", err)
		}

		logrus.Info("Database created/updated successfully")

		return nil
	},
}
