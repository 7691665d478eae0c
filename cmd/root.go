package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Telegram helpdesk bridge: intake dialogues, ticket creation, two-way relay",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(pollerCmd)
	rootCmd.AddCommand(relayWorkerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(hashTokenCmd)
}
