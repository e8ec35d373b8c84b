package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/HerbHall/welfaredesk/internal/attachments"
	"github.com/HerbHall/welfaredesk/internal/backup"
	"github.com/HerbHall/welfaredesk/internal/store"
)

var (
	backupOutput string
	restoreInput string
	restoreForce bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the emulator database and uploaded files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbPath := cfg.GetString("emulator.db_path")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("database file not found: %w", err)
		}
		db, err := store.New(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		files, err := attachments.Open(cmd.Context(), cfg.Sub("attachments"))
		if err != nil {
			return err
		}

		if backupOutput == "" {
			backupOutput = fmt.Sprintf("welfaredesk-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
		}
		out, err := os.Create(backupOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		sum, err := backup.Backup(cmd.Context(), db, files, out)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(backupOutput)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s (%d files, %d bytes)\n", backupOutput, sum.Files, sum.Bytes)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the emulator database and uploaded files from an archive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in, err := os.Open(restoreInput)
		if err != nil {
			return err
		}
		defer in.Close()
		files, err := attachments.Open(cmd.Context(), cfg.Sub("attachments"))
		if err != nil {
			return err
		}
		dbPath := cfg.GetString("emulator.db_path")
		sum, err := backup.Restore(cmd.Context(), in, dbPath, files, restoreForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %s and %d files\n", dbPath, sum.Files)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "archive path (default welfaredesk-backup-{timestamp}.tar.gz)")
	restoreCmd.Flags().StringVarP(&restoreInput, "input", "i", "", "archive to restore")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "replace an existing database and clashing files")
	_ = restoreCmd.MarkFlagRequired("input")
}
