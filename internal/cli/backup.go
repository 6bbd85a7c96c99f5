package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		Long:  "Write a consistent copy of the database using VACUUM INTO. Safe while the server is running.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dst := out
			if dst == "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				dst = cfg.DatabasePath + ".bak"
			}
			if _, err := os.Stat(dst); err == nil {
				return fmt.Errorf("backup target %s already exists", dst)
			}

			if _, err := a.DB.Exec(cmd.Context(), `VACUUM INTO ?`, dst); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database backup written to %s\n", dst)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Backup file (default <database>.bak)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a backup (server must be stopped)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			src := from
			if src == "" {
				src = cfg.DatabasePath + ".bak"
			}

			if err := copyFile(src, cfg.DatabasePath); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			// stale WAL files belong to the replaced database
			for _, suffix := range []string{"-wal", "-shm"} {
				if err := os.Remove(cfg.DatabasePath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("restore: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s\n", src)
			return nil
		},
	}
	cmd.Flags().StringVarP(&from, "from", "f", "", "Backup file (default <database>.bak)")
	return cmd
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	tmp := dst + ".restore"
	dstFile, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(tmp)
		return err
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
