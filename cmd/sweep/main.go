// Command sweep deletes accounts that never verified their email and whose
// OTP expired longer ago than UNVERIFIED_RETENTION. Run it from cron.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/satrioramadhan/scansek-api/internal/app"
	"github.com/satrioramadhan/scansek-api/internal/config"
	"github.com/satrioramadhan/scansek-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("scansek-sweep", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeout := context.WithTimeout(ctx, 2*time.Minute)
	defer timeout()

	deleted, err := app.RunSweep(ctx, cfg, log)
	if err != nil {
		log.Error("sweep failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("sweep complete", slog.Int64("deleted", deleted))
}
