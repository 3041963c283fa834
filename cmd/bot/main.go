package main

import (
	"context"
	"log"

	"lottery-bot/internal/bot"
	"lottery-bot/internal/config"
	"lottery-bot/internal/database"
	"lottery-bot/internal/eligibility"
	"lottery-bot/internal/logger"
	"lottery-bot/internal/lottery"
	"lottery-bot/internal/worker"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.BotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	// The service is wired up in two steps because the membership checker
	// needs the bot instance the service is injected into.
	service := lottery.NewService(db, rdb, nil, eligibility.StubDeviceOracle{}, lottery.NewRandomCodes(), cfg.AdminIDs, zlog)

	tgBot, err := bot.NewBot(cfg.BotToken, service, cfg, zlog)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}
	service.SetMembership(eligibility.NewChannelChecker(tgBot.Instance, cfg.RequiredChannel))

	if err := service.EnsureDefaultSettings(context.Background()); err != nil {
		log.Fatalf("Could not seed settings: %v", err)
	}

	reaper := worker.NewReaper(service, rdb, tgBot.Instance, zlog)
	go reaper.Start()

	zlog.Info("Service started successfully")
	tgBot.Start()
}
