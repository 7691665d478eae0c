package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/bridge"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates the bridge-owned tables. The ticket system's
// own schema is external and not touched here.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&bridge.TelegramUser{},
		&bridge.TelegramChat{},
		&bridge.ChatMember{},
		&bridge.ConversationState{},
		&bridge.TicketMapping{},
		&bridge.BridgeSetting{},
	)
}
