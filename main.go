package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"medchat/internal/api"
	"medchat/internal/config"
	"medchat/internal/redis"
	"medchat/internal/service/ai"
	"medchat/internal/service/assistant"
	"medchat/internal/storage"
	"medchat/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("MEDCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, logCloser, err := telemetry.InitLogger(cfg.BasicConfig.LogDir, cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logCloser.Close()

	ctx := context.Background()
	if cfg.BasicConfig.Telemetry {
		shutdown, err := telemetry.InitTelemetry(ctx, cfg.BasicConfig.LogDir)
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer shutdown()
	}

	dbType := storage.Normalize(cfg.Database.Driver)
	logger.Info("opening database", "driver", dbType)
	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: chat_sessions, chat_messages
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	chatModel, err := ai.NewChatModel(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("init chat model: %v", err)
	}
	generator, err := ai.NewGenerator(chatModel, ai.GeneratorConfig{
		ReplyModel:   cfg.Provider.ReplyModel,
		TitleModel:   cfg.Provider.TitleModel,
		SystemPrompt: cfg.Assistant.SystemPrompt,
	})
	if err != nil {
		log.Fatalf("init generator: %v", err)
	}

	assistantService := assistant.NewService(db, dbType, cfg.Assistant.PlaceholderTitle)
	var locker api.TitleLocker
	if rdb != nil {
		locker = rdb
	}
	handlers := api.NewHandler(assistantService, generator, locker, api.Options{
		WelcomeMessage: cfg.Assistant.WelcomeMessage,
		TitleLockTTL:   time.Duration(cfg.Assistant.TitleLockTTL) * time.Second,
		Logger:         logger,
	})

	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(slog.Default()), api.CORS(cfg.BasicConfig.CORSOrigins))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	logger.Info("server listening", "addr", addr, "provider", cfg.Provider.Name)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
