package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "metricsdemo",
		Short:        "Metrics engine demo",
		Long:         `metricsdemo fits a linear regressor on synthetic data and routes every logged metric to the configured sinks.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
