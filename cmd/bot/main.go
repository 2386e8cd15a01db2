package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovolkov/sparkbot/internal/bot"
	"github.com/ovolkov/sparkbot/internal/dispatch"
	"github.com/ovolkov/sparkbot/internal/gateway"
	"github.com/ovolkov/sparkbot/internal/session"
	"github.com/ovolkov/sparkbot/internal/storage"
	"github.com/ovolkov/sparkbot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize the conversation log
	var convLog storage.ConversationLog
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory conversation log")
		convLog = storage.NewMemoryLog()
	} else {
		logger.Info("Using PostgreSQL conversation log")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		convLog, err = storage.NewPostgresLog(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize conversation log", zap.Error(err))
		}
	}
	defer convLog.Close()

	// Initialize the inference gateway client. Outbound calls get a fixed
	// conservative timeout; the upstream has none of its own.
	gatewayClient := gateway.NewClient(gateway.Config{
		AccountID: cfg.Cloudflare.AccountID,
		APIToken:  cfg.Cloudflare.APIToken,
		BaseURL:   cfg.Cloudflare.BaseURL,
	}, &http.Client{Timeout: 30 * time.Second}, logger)

	// Initialize the session store and dispatcher
	sessions := session.NewStore()
	dispatcher := dispatch.New(sessions, gatewayClient, convLog, logger)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, cfg.Telegram.AdminIDs, dispatcher, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	logger.Info("Starting bot")
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
