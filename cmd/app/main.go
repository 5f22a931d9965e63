package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"helpboard_miniapp/internal/api"
	"helpboard_miniapp/internal/notifier"
	"helpboard_miniapp/internal/repository"
	"helpboard_miniapp/internal/service"
	"helpboard_miniapp/pkg/auth"
	"helpboard_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	feedHub := api.NewFeedHub()

	sinks := []notifier.Sink{feedHub}
	if cfg.Notifier.TelegramEnabled {
		tg, err := notifier.NewTelegramNotifier(notifier.TelegramConfig{
			BotToken: cfg.TelegramAuth.TelegramBotToken,
			Debug:    cfg.Notifier.BotDebug,
		})
		if err != nil {
			zapLogger.Fatal("Failed to initialize telegram notifier", zap.Error(err))
		}
		sinks = append(sinks, tg)
	}
	events := notifier.NewFanout(sinks...)

	scoring := service.NewScoringEngine(cfg.Scoring)
	userService := service.NewUserService(repo, repo)
	requestService := service.NewRequestService(repo, repo, repo, scoring, service.DefaultBadges(), events)
	leaderboardService := service.NewLeaderboardService(repo, cfg.Leaderboard)

	if err := leaderboardService.StartMaterializer(); err != nil {
		zapLogger.Fatal("Failed to start leaderboard materializer", zap.Error(err))
	}
	defer leaderboardService.Stop()

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService, telegramAuth)
	api.NewRequestRoutes(a, requestService, telegramAuth)
	api.NewLeaderboardRoutes(a, leaderboardService, telegramAuth)
	api.NewFeedRoutes(a, feedHub)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
