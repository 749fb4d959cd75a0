package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/smartcity/predictor/internal/app"
	"github.com/smartcity/predictor/internal/config"
	"github.com/smartcity/predictor/internal/delivery/http"
	"github.com/smartcity/predictor/internal/logger"
)

func main() {
	// Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	if !cfg.EnvFileLoaded {
		zl.Info("No .env file found, using system environment")
	}

	// Service context: storage, history, models, forecast, text generator
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	a, err := app.New(ctx, cfg, zl)
	cancel()
	if err != nil {
		zl.Fatal("Startup failed", zap.Error(err))
	}
	defer a.Close()

	// Fiber App
	server := fiber.New(fiber.Config{
		AppName:               "SmartCity Predictor v1.0",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          http.ErrorHandler,
		DisableStartupMessage: cfg.IsProduction(),
	})

	// Middleware
	server.Use(recover.New())
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	handler := http.NewHandler(http.Deps{
		Pipeline:   a.Pipeline,
		Models:     a.Models,
		Weather:    a.Weather,
		Forecast:   a.Forecast,
		Logs:       a.Logs,
		Repo:       a.Repo,
		History:    a.History,
		Stats:      a.Stats,
		LiveEnrich: cfg.LiveEnrich,
		Logger:     zl,
	})
	http.SetupRoutes(server, handler, a.Registry)

	// Graceful shutdown
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := server.Listen(":" + cfg.Port); err != nil {
			zl.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	if err := server.ShutdownWithTimeout(5 * time.Second); err != nil {
		zl.Warn("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited gracefully")
}
