package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	natsadapter "github.com/aslanbek/account-service/internal/adapter/nats"
	"github.com/aslanbek/account-service/internal/auth"
	"github.com/aslanbek/account-service/internal/config"
	"github.com/aslanbek/account-service/internal/handler"
	"github.com/aslanbek/account-service/internal/mailer"
	"github.com/aslanbek/account-service/internal/middleware"
	"github.com/aslanbek/account-service/internal/repository"
	"github.com/aslanbek/account-service/internal/router"
	"github.com/aslanbek/account-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := mongoClient.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}
	db := mongoClient.Database(cfg.MongoDB)

	// Optional side-effect adapters: mail and account events
	var accountMailer mailer.Mailer
	if cfg.SMTPHost != "" {
		accountMailer = mailer.NewSMTPMailerService(
			cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUsername, cfg.SMTPPassword,
			cfg.SMTPFrom, cfg.SMTPSender,
			logger,
		)
	}

	var events usecase.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := natsadapter.NewPublisher(cfg.NATSURL, 5*time.Second, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	userRepo := repository.NewUserRepository(db, logger)
	userUsecase := usecase.NewUserUsecase(userRepo, tokens, accountMailer, events, logger)
	userHandler := handler.NewUserHandler(userUsecase, cfg, logger)
	authMiddleware := middleware.Auth(tokens, userUsecase, logger)

	r := router.New(cfg, userHandler, authMiddleware, logger)

	httpServerAddr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting account service",
		zap.String("address", httpServerAddr),
		zap.String("mode", cfg.Mode))
	if err := http.ListenAndServe(httpServerAddr, r); err != nil {
		logger.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
