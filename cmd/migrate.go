package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/config"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the bridge-owned database tables",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	log.Println("migrate: ok")
	return nil
}
