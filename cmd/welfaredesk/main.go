package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HerbHall/welfaredesk/internal/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "welfaredesk",
	Short: "WelfareDesk - admin front end for the welfare office CMS",
	Long: `WelfareDesk serves the admin tables and dialogs for the welfare office
content endpoints: reports, services, ordinances, news, stories, feedback,
advisories and users.

Configuration is read from welfaredesk.yaml (or --config) and WELFAREDESK_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.GetBool("log.development") || verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(emulateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
