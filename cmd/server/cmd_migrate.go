package main

import (
	"errors"
	"fmt"

	"github.com/duragraph/duragraph/cmd/server/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the graphs/node_executions/interrupts schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.User, cfg.Database.Password, cfg.Database.Host,
				cfg.Database.Port, cfg.Database.Database, cfg.Database.SSLMode)

			m, err := migrate.New("file://migrations", dsn)
			if err != nil {
				return err
			}
			defer m.Close()

			if down {
				err = m.Down()
			} else {
				err = m.Up()
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return err
			}

			fmt.Println("migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back one migration set instead of applying pending ones")
	return cmd
}
