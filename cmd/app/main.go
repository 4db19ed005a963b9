package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"questboard/internal/api"
	"questboard/internal/middleware"
	"questboard/internal/repository"
	"questboard/internal/service"
	"questboard/pkg/auth"
	"questboard/pkg/logger"
	"questboard/pkg/mailer"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
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

	notifier := mailer.New(cfg.SMTP)
	sessionAuth := auth.NewSessionAuth(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)

	userService := service.NewUserService(repo, notifier)
	referralService := service.NewReferralService(repo, repo)
	leaderboardService := service.NewLeaderboardService(repo)
	questService := service.NewQuestService(repo, repo, repo, referralService, leaderboardService)
	withdrawalService := service.NewWithdrawalService(repo, repo, notifier)
	settingsService := service.NewSettingsService(repo)

	authz := middleware.NewAuthorization(userService)

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService, sessionAuth)
	api.NewQuestRoutes(a, questService, sessionAuth)
	api.NewWithdrawalRoutes(a, withdrawalService, sessionAuth)
	api.NewSettingsRoutes(a, settingsService, sessionAuth)
	api.NewAdminRoutes(a, questService, withdrawalService, sessionAuth, authz)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
