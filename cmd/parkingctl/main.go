// Package main - утилита обслуживания сервиса бронирования парковок.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "parkingctl",
		Short:         "Parking booking maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(),
		sweepCmd(),
		quoteCmd(),
		pricingCmd(),
		spotCmd(),
		tokenCmd(),
	)

	return rootCmd
}
