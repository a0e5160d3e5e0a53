package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-signup-api/internal/config"
	"github.com/go-signup-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-signup-api/internal/infrastructure/jwt"
	"github.com/go-signup-api/internal/infrastructure/mail"
	"github.com/go-signup-api/internal/infrastructure/password"
	"github.com/go-signup-api/internal/infrastructure/redisstore"
	"github.com/go-signup-api/internal/infrastructure/sns"
	"github.com/go-signup-api/internal/pkg/otp"
	transporthttp "github.com/go-signup-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Temporary store backend for verification sessions and registration drafts.
	var tempStore transporthttp.TempStore
	switch cfg.TempStoreBackend {
	case "redis":
		store, err := redisstore.New(cfg)
		if err != nil {
			log.Fatalf("redis temp store: %v", err)
		}
		tempStore = store
	default:
		tempStore = dynamo.NewTempStore(dynamoClient, cfg.DynamoTables.TempRecords)
	}

	// JWT provider (optional, graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// SNS SMS sender (optional, graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:      dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		TempStore:     tempStore,
		CodeGenerator: otp.NewGenerator(cfg.OTPLength, cfg.OTPFixedCode),
		Hasher:        password.NewBcryptHasher(),
		Mailer:        mail.NewMailer(cfg),
		SMSSender:     smsSender,
		JWTProvider:   jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, temp store=%s)", cfg.AppPort, cfg.AppEnv, cfg.TempStoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
