package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/auth"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Bcrypt-hash a webhook token for HOOK_TOKEN_HASH",
	Args:  cobra.ExactArgs(1),
	RunE:  runHashToken,
}

func runHashToken(cmd *cobra.Command, args []string) error {
	hash, err := auth.HashToken(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
