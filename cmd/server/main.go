package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/w3joe/eloquentai/adapters/agent"
	"github.com/w3joe/eloquentai/adapters/assessment"
	"github.com/w3joe/eloquentai/adapters/llm"
	"github.com/w3joe/eloquentai/adapters/memory"
	mongodb "github.com/w3joe/eloquentai/adapters/mongo"
	"github.com/w3joe/eloquentai/domain/repositories"
	"github.com/w3joe/eloquentai/internal/api"
	"github.com/w3joe/eloquentai/internal/ws"
	"github.com/w3joe/eloquentai/usecase"
)

func main() {
	// Load .env if present; real deployments use environment variables
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize adapters
	generator, err := llm.NewGeminiService(logger)
	if err != nil {
		logger.Fatal("Failed to initialize generation service", zap.Error(err))
	}

	conversationAgent, err := agent.NewElevenLabsAgent(logger)
	if err != nil {
		logger.Fatal("Failed to initialize conversation agent", zap.Error(err))
	}

	var assessor repositories.PronunciationAssessor
	azure := assessment.NewAzureAssessor(logger)
	if azure.Configured() {
		assessor = azure
		logger.Info("Using Azure pronunciation assessment")
	} else {
		assessor = assessment.NewGoogleAssessor(logger)
		logger.Info("Azure credentials missing, using Google speech assessment")
	}

	// Persistence: MongoDB when configured, in-memory otherwise
	var (
		profileRepo  repositories.ProfileRepository
		feedbackRepo repositories.FeedbackRepository
	)
	if os.Getenv("MONGODB_URI") != "" {
		client, err := mongodb.NewClient(logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(ctx)
		}()
		profileRepo = mongodb.NewProfileRepository(client.Database())
		feedbackRepo = mongodb.NewFeedbackRepository(client.Database())
	} else {
		store := memory.NewStore()
		profileRepo = memory.ProfileRepository{Store: store}
		feedbackRepo = memory.FeedbackRepository{Store: store}
		logger.Info("MONGODB_URI not set, using in-memory store")
	}

	// Initialize usecase services
	scenarioService := usecase.NewScenarioService(generator, logger)
	feedbackService := usecase.NewFeedbackService(generator, logger)

	// Initialize session gateway and API routes
	gateway := ws.NewGateway(conversationAgent, assessor, feedbackService, feedbackRepo, logger)
	server := api.NewServer(scenarioService, profileRepo, feedbackRepo, assessor, gateway, logger)
	server.InitRoutes(e)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
