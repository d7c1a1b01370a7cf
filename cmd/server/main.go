// Package main provides the API server entry point for the fairfund scanner
// service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairfund-scanner/internal/api"
	"github.com/fairfund-scanner/internal/chain"
	"github.com/fairfund-scanner/internal/config"
	"github.com/fairfund-scanner/internal/logging"
	"github.com/fairfund-scanner/internal/orchestrator"
	"github.com/fairfund-scanner/internal/projection"
	"github.com/fairfund-scanner/internal/retry"
	"github.com/fairfund-scanner/internal/service"
	"github.com/fairfund-scanner/internal/storage"
	"github.com/fairfund-scanner/internal/token"
	"github.com/fairfund-scanner/internal/wallet"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Chain connection
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to RPC endpoint: %v", err)
	}
	defer client.Close()

	verifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := chain.VerifyChainID(verifyCtx, client, cfg.Chain.ChainID); err != nil {
		cancel()
		log.Fatalf("Chain verification failed: %v", err)
	}
	cancel()
	logger.WithFields(map[string]interface{}{
		"rpc":     cfg.Chain.RPCURL,
		"chainId": cfg.Chain.ChainID,
	}).Info("Chain connection established")

	escrow, err := chain.NewEscrowGateway(client, cfg.Chain.EscrowAddress)
	if err != nil {
		log.Fatalf("Failed to bind escrow contract: %v", err)
	}
	tokens := chain.NewTokenGateway(client)

	// Signing session is optional: without a key the service is read-only.
	var session *wallet.Session
	if cfg.CanSign() {
		session, err = wallet.NewSession(cfg.Chain.SignerKey, cfg.Chain.ChainID)
		if err != nil {
			log.Fatalf("Failed to create signing session: %v", err)
		}
		logger.WithField("signer", session.Address().Hex()).Info("Signing session ready")
	} else {
		logger.Warn("No signer key configured, write actions disabled")
	}

	// Redis-backed read cache
	redis, err := storage.NewRedisCache(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	cache := storage.NewProjectionCache(redis, cfg.Cache.TTL)
	logger.Info("Redis connection established")

	// Projection pipeline
	resolver := token.NewResolver(tokens, token.NewMetadataStore())
	formatter := token.NewFormatter(cfg.LocaleTag())
	builder := projection.NewBuilder(resolver, formatter, nil)

	projectService := service.NewProjectService(escrow, builder, resolver, formatter, cache, retry.DefaultConfig())
	actions := orchestrator.New(session, escrow, tokens, resolver, cache, cfg)

	server := api.NewServer(&cfg.Server, projectService, actions)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server failed")
			os.Exit(1)
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}
