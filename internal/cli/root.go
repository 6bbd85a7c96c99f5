// Package cli implements the preptrack admin command line.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/garnizeh/preptrack/internal/app"
	"github.com/garnizeh/preptrack/internal/config"
)

// NewRootCmd builds a fresh command tree. Tests build their own so flags never leak
// between runs.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "preptrack",
		Short:        "Admin tools for the preptrack progress store",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to config YAML file")
	root.PersistentFlags().String("db", "", "Path to SQLite database file (overrides config and PREP_DATABASE_PATH)")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newRestoreCmd())
	root.AddCommand(newRecomputeCmd())
	root.AddCommand(newShowCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves the config file, then lets --db win over everything else.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DatabasePath = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp opens the store with migrations applied. Logs go to stderr so command output
// on stdout stays machine readable.
func openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, cmdLogger(cmd.ErrOrStderr()), true)
}

func cmdLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
