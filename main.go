package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"dice-gift-bot/handlers"
	"dice-gift-bot/services"
	"dice-gift-bot/storage"
	"dice-gift-bot/telegram"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

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
	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
	if err != nil {
		log.Fatal("ADMIN_ID environment variable not set or not numeric")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	gormStore := storage.NewGormStore(db)
	if err := gormStore.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Ledger and referral state degrade to an in-memory mirror when the
	// database is unreachable; queue and payment state never do.
	store := storage.NewFallback(gormStore, storage.NewMemStore())

	ledgerService := services.NewLedgerService(store)
	referralService := services.NewReferralService(store, ledgerService)
	queueService := services.NewQueueService(store)
	sessionService := services.NewSessionService(ledgerService, referralService, queueService)
	paymentService := services.NewPaymentService(store)
	statsService := services.NewStatsService(store, ledgerService, queueService)

	bot, err := telegram.NewBot(botToken, adminID,
		sessionService, ledgerService, referralService, paymentService, statsService)
	if err != nil {
		log.Fatal("failed to start telegram bot:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := fiber.New()
	app.Use(cors.New())
	handlers.SetupAdminRoutes(app, statsService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	go bot.StartPolling(ctx)

	log.Println("✅ Admin API running on http://localhost:5300")
	log.Println("✅ Telegram bot polling")

	<-ctx.Done()
	log.Println("Shutting down bot...")
}
