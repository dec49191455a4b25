// Command devserver runs the command API as a plain HTTP server and offers
// maintenance subcommands for local use.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ai-commands/internal/config"
)

var (
	driverFlag string
	rootCmd    = &cobra.Command{
		Use:          "devserver",
		Short:        "Local server and maintenance tools for the AI command API",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&driverFlag, "driver", "d", config.DriverSQLite, "Store driver (sqlite or dynamodb)")
	rootCmd.AddCommand(newServeCmd(), newTokensCmd(), newHistoryCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment with the --driver flag applied.
func loadConfig() (*config.Config, error) {
	return config.New(func(c *config.Config) { c.StoreDriver = driverFlag })
}
