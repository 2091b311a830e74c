package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 0, "Maximum number of pending steps to replay (defaults to settlement.reconcile_batch)")
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileLimit int

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay pending settlement steps once",
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	limit := cfg.Settlement.ReconcileBatch
	if reconcileLimit > 0 {
		limit = reconcileLimit
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.close(cfg.Server.ShutdownTimeout)
	a.dispatcher.Start()

	report, err := a.settlement.Reconcile(cmd.Context(), limit)
	fmt.Fprintf(cmd.OutOrStdout(), "pending=%d replayed=%d failed=%d skipped=%d\n",
		report.Pending, report.Replayed, report.Failed, report.Skipped)
	return err
}
