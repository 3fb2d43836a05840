package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var dbPath string

	rootCmd := &cobra.Command{
		Use:          "cleaningbot",
		Short:        "Household cleaning checklist bot",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DATABASE_URL)")

	rootCmd.AddCommand(serveCmd(&dbPath))
	rootCmd.AddCommand(exportCmd(&dbPath))
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
