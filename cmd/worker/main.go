package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dice-gift-bot/services"
	"dice-gift-bot/storage"
	"dice-gift-bot/telegram"
	"dice-gift-bot/workers"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// The gift worker runs as its own process against the same database as
// the bot. Several instances may run at once; the queue's claim
// discipline keeps them from stepping on each other.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		log.Fatal("BOT_TOKEN environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	queueService := services.NewQueueService(storage.NewGormStore(db))

	vendor, err := telegram.NewGiftVendorClient(botToken)
	if err != nil {
		log.Fatal("failed to create gift vendor client:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := workers.StartReclaimSweep(ctx, queueService, 1*time.Minute)
	if err != nil {
		log.Fatal("failed to start reclaim sweep:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	workers.NewGiftWorker(queueService, vendor).Run(ctx)
}
