package cmd

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/bridge"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/config"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/db"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/helpdesk"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/store/rabbitmq"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/telegram"
)

var relayWorkerCmd = &cobra.Command{
	Use:   "relay-worker",
	Short: "Consume ticket-system events and relay them to Telegram",
	RunE:  runRelayWorker,
}

func runRelayWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.TelegramToken == "" {
		log.Fatal("relay-worker: TELEGRAM_BOT_TOKEN is required")
	}

	gdb := db.Connect(cfg.DBDSN)
	repo := bridge.NewRepo(gdb)

	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramToken)
	desk := helpdesk.NewClient(cfg.HelpdeskBaseURL, cfg.HelpdeskAPIKey, cfg.HelpdeskAPISecret)
	relay := bridge.NewRelay(repo, tg, desk)

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("relay-worker: rabbit consumer: %v", err)
	}
	defer consumer.Close()

	concurrency := cfg.WorkerConcurrency
	msgs, err := consumer.Deliveries(concurrency)
	if err != nil {
		log.Fatalf("relay-worker: consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("relay-worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var ev bridge.RelayEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.TicketID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := relay.Handle(ctx, ev); err != nil {
					log.Printf("worker=%d event %s failed cost=%s err=%v", workerID, ev.ID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed event=%s err=%v", workerID, ev.ID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("relay-worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
