package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/config"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/httpapi"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/store/rabbitmq"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the webhook HTTP API for ticket-system hooks",
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("api: rabbit publisher: %v", err)
	}
	defer pub.Close()

	router := httpapi.NewRouter(cfg, pub)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("api listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("api: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
