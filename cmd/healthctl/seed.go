package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/healthanalysis/internal/catalog"
	"example.com/healthanalysis/internal/persistence/postgres"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the built-in condition and exercise catalog",
	Long: `Seed loads the built-in catalog of health conditions, exercises and their
effectiveness and safety scores. Rows are matched by name, so running it
again updates the catalog in place.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ds := catalog.Default()
		if err := ds.Validate(); err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
		return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
			if seedMigrate {
				if _, err := postgres.Migrate(ctx, pool); err != nil {
					return err
				}
			}
			result, err := postgres.NewStore(pool).Seed(ctx, ds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d conditions, %d exercises, %d associations\n",
				result.Conditions, result.Exercises, result.Associations)
			lg.Info("catalog seeded", "conditions", result.Conditions, "exercises", result.Exercises, "associations", result.Associations)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", false, "apply pending migrations before seeding")
	rootCmd.AddCommand(seedCmd)
}
