package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kebairia/borgwatch/internal/operations"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Re-run alerting from the persisted report, without scanning",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.NotifyFromConfig(context.Background(), configFile)
	},
}
