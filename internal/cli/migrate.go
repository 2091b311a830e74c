package cli

import (
	"github.com/spf13/cobra"

	"github.com/aimd54/travelquest-rewards/internal/repository"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{repository.MigrateUp, repository.MigrateDown},
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		return repository.RunMigrations(&cfg.Database.Postgres, args[0], log)
	},
}
