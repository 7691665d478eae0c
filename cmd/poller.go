package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/bridge"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/config"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/db"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/poller"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/store/redisstore"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

var pollerCmd = &cobra.Command{
	Use:   "poller",
	Short: "Run the Telegram long-poll loop",
	RunE:  runPoller,
}

func runPoller(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.TelegramToken == "" {
		log.Fatal("poller: TELEGRAM_BOT_TOKEN is required")
	}

	gdb := db.Connect(cfg.DBDSN)
	repo := bridge.NewRepo(gdb)

	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramToken)
	desk := helpdesk.NewClient(cfg.HelpdeskBaseURL, cfg.HelpdeskAPIKey, cfg.HelpdeskAPISecret)

	machine := bridge.NewMachine(repo, tg, desk, bridge.Settings{
		WelcomeMessage:        cfg.WelcomeMessage,
		TicketCreatedTemplate: cfg.TicketCreatedTemplate,
		TicketTemplate:        cfg.TicketTemplate,
		DefaultTicketType:     cfg.DefaultTicketType,
		DefaultAgentGroup:     cfg.DefaultAgentGroup,
	})

	locks := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer locks.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := locks.Ping(ctx); err != nil {
		log.Fatalf("poller: redis ping: %v", err)
	}

	p := poller.New(locks, tg, machine, repo, cfg.PollBudget, cfg.LockTTL)

	log.Printf("poller started, interval=%s budget=%s", cfg.PollInterval, cfg.PollBudget)
	p.Run(ctx, cfg.PollInterval)
	return nil
}
