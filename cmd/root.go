package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kebairia/borgwatch/internal/logger"
)

var (
	// configFile is the path to the YAML configuration.
	configFile string
	// debug raises the log level to debug.
	debug bool

	// rootCmd is the base command for borgwatch.
	rootCmd = &cobra.Command{
		Use:   "borgwatch",
		Short: "Monitor borg backup repositories and alert on failures",
		Long: `borgwatch scans borg backup repositories, correlates archives
with their run logs, persists a consolidated health report and raises
deduplicated alerts for failed backups.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Init(debug)
			return err
		},
	}
)

// Execute runs the root command. Configuration and other fatal faults
// exit non-zero.
func Execute() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		logger.Global().Error("command failed", "error", err)
		logger.Cleanup()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configFile, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().
		BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(notifyCmd)
}
