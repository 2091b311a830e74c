package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aimd54/travelquest-rewards/internal/repository"
)

func init() {
	seedBadgesCmd.Flags().StringVar(&seedFile, "file", "", "Badge seed file (overrides badges.seed_file)")
	rootCmd.AddCommand(seedBadgesCmd)
	rootCmd.AddCommand(evaluateBadgesCmd)
}

var seedFile string

var seedBadgesCmd = &cobra.Command{
	Use:   "seed-badges",
	Short: "Upsert the badge catalog from the seed file",
	RunE:  runSeedBadges,
}

var evaluateBadgesCmd = &cobra.Command{
	Use:   "evaluate-badges",
	Short: "Evaluate badges for every user once",
	RunE:  runEvaluateBadges,
}

func runSeedBadges(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Badges.SeedFile
	if seedFile != "" {
		path = seedFile
	}

	seed, err := repository.LoadBadgeSeed(path)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close(cfg.Server.ShutdownTimeout)

	if err := a.gw.SeedBadges(cmd.Context(), seed); err != nil {
		return fmt.Errorf("failed to seed badges: %w", err)
	}
	if a.catalog != nil {
		if err := a.catalog.Invalidate(cmd.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate badge catalog cache")
		}
	}

	log.Info().Int("badges", len(seed)).Str("file", path).Msg("Badge catalog seeded")
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d badges from %s\n", len(seed), path)
	return nil
}

func runEvaluateBadges(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close(cfg.Server.ShutdownTimeout)
	a.dispatcher.Start()

	unlocked, err := a.scheduler.RunBadgeSweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "unlocked %d badges\n", unlocked)
	return nil
}
