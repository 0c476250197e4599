package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AVISH911/donorhub-blood-donation/internal/config"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/dynamo"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/redisstore"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/smtp"
	"github.com/AVISH911/donorhub-blood-donation/internal/infrastructure/sns"
	transporthttp "github.com/AVISH911/donorhub-blood-donation/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreBackend, "delivery", cfg.DeliveryProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		return
	}
	slog.Info("server stopped")
}

// buildDeps wires the configured store backend and delivery provider.
// Users always live in DynamoDB; STORE_BACKEND only selects where OTP and
// rate-limit state is kept.
func buildDeps(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, func(), error) {
	cleanup := func() {}

	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("dynamo client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	deps := &transporthttp.Deps{
		UserRepo: dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
	}

	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, err := redisstore.NewClient(ctx, cfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("redis client: %w", err)
		}
		cleanup = func() { _ = rdb.Close() }
		deps.OTPStore = redisstore.NewOTPStore(rdb)
		deps.RateLimitStore = redisstore.NewRateLimitStore(rdb)
	case config.StoreDynamo:
		deps.OTPStore = dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs)
		deps.RateLimitStore = dynamo.NewRateLimitRepo(dynamoClient, cfg.DynamoTables.OTPAttempts)
	default:
		return nil, cleanup, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.DeliveryProvider {
	case config.ProviderSNS:
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			return nil, cleanup, fmt.Errorf("sns aws config: %w", err)
		}
		deps.Gateway = sns.NewGateway(sns.NewClient(awsCfg, cfg), cfg)
	case config.ProviderSMTP:
		gw := smtp.NewGateway(cfg)
		if !gw.Configured() {
			slog.Warn("smtp is not fully configured; OTP delivery will fail", "host", cfg.SMTPHost)
		}
		deps.Gateway = gw
	default:
		return nil, cleanup, fmt.Errorf("unknown DELIVERY_PROVIDER %q", cfg.DeliveryProvider)
	}

	return deps, cleanup, nil
}
