package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kebairia/borgwatch/internal/operations"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all repositories, alert on failures and export the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return operations.ScanAllFromConfig(context.Background(), configFile)
	},
}
