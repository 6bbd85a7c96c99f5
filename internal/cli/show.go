package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/garnizeh/preptrack/pkg/models"
)

type sessionReport struct {
	Aggregate *models.AggregateProgress `json:"aggregate"`
	Projects  []models.ProjectCompletion `json:"projects"`
}

func newShowCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a session's aggregate and project records as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return errors.New("--session is required")
			}

			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			agg, err := a.Service.GetAggregate(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			projects, err := a.Service.ListProjects(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sessionReport{Aggregate: agg, Projects: projects})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
