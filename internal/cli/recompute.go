package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecomputeCmd() *cobra.Command {
	var (
		sessionID string
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild readiness aggregates from project rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sessionID == "") == !all {
				return errors.New("exactly one of --session or --all is required")
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !all {
				agg, err := a.Service.Recompute(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), agg)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			n, err := a.Service.RecomputeAll(cmd.Context(), cfg.Store.RecomputeConcurrency)
			fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d sessions\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to rebuild")
	cmd.Flags().BoolVar(&all, "all", false, "Rebuild every session")
	return cmd
}
