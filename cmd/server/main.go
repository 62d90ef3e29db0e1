package main

import (
	"fmt"
	"os"

	"casedesk/internal/api/routes"
	"casedesk/internal/config"
	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize database
	if err := models.InitDB(cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}

	// Create default admin user if database is empty
	authService := services.NewAuthService(cfg)
	if err := authService.CreateDefaultUser(); err != nil {
		logger.Warn().Err(err).Msg("failed to create default user")
	}

	// Start the expired-session sweeper
	sweeper := services.NewSessionCleanupSweeper(func() *gorm.DB { return models.DB }, cfg.SweepInterval(), logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	r := gin.Default()

	// Setup routes
	routes.SetupRoutes(r, cfg, logger)

	// Run server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Msg("starting CaseDesk server")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
