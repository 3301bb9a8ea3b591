package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/healthanalysis/internal/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			lg.Info("migrations applied", "count", len(applied))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
