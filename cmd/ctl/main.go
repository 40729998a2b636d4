package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ctl",
		Short: "Craftbill operator commands",
		Long:  `Operator commands that run against the same configuration and stores as the API server.`,
	}

	rootCmd.AddCommand(
		newDeleteAccountCommand(),
		newReconcileCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
