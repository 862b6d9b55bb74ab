package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/majmadigital/finance-ledger/internal/auth"
	"github.com/majmadigital/finance-ledger/internal/config"
	"github.com/majmadigital/finance-ledger/internal/handlers"
	"github.com/majmadigital/finance-ledger/internal/idempotency"
	"github.com/majmadigital/finance-ledger/internal/services"
	"github.com/majmadigital/finance-ledger/internal/store"
	xhttp "github.com/majmadigital/finance-ledger/pkg/http"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/prom"
	"github.com/majmadigital/finance-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.SetService(cfg.AppName + "-api")
	logger.Info("starting finance api", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

	ctx := context.Background()

	host, _ := os.Hostname()
	if err := prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed registering metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	ledger, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed opening ledger store", "error", err)
		return
	}
	defer ledger.Close(ctx)

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.Redis("finance-api"))
	if err != nil {
		// payments still run without the guard; the unique transaction id holds
		logger.Warn("failed connecting to redis, idempotency guard disabled", "error", err)
	}

	var guard services.IdempotencyGuard
	if redisAdap != nil {
		guard = idempotency.NewGuard(redisAdap, idempotency.Config{
			LockTTL:            cfg.IdempotencyLockTTL,
			ProcessedTTL:       cfg.IdempotencyProcessedTTL,
			LockKeyPrefix:      "payment:lock:",
			ProcessedKeyPrefix: "payment:done:",
		})
	}

	// services
	paymentService := services.NewPaymentService(
		ledger,
		ledger.Members,
		ledger.Commissions,
		ledger.Contributions,
		ledger.Campaigns,
		guard,
		services.PaymentConfig{
			Commission: cfg.PaymentCommission,
			TxTimeout:  cfg.PaymentTxTimeout,
			IDRetries:  cfg.PaymentIDRetries,
		},
	)
	contributionService := services.NewContributionService(ledger.Contributions)
	campaignService := services.NewCampaignService(ledger.Campaigns, ledger.Members)

	gate := auth.NewGate(auth.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
	}, ledger.Members, auth.DefaultPolicy())

	// handlers
	financeHandler := handlers.NewFinanceHandler(paymentService, contributionService, gate)
	campaignHandler := handlers.NewCampaignHandler(campaignService, gate)
	deps := []handlers.Dependency{{Name: "store", Pinger: ledger}}
	if redisAdap != nil {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: redisAdap})
	}
	healthHandler := handlers.NewHealthHandler(deps...)

	// transport
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Router = xhttp.CreateDefaultRouter()

	g := s.Router.Group("/api")
	handlers.RegisterFinanceRoutes(g, financeHandler, gate)
	handlers.RegisterCampaignRoutes(g, campaignHandler, gate)
	handlers.RegisterHealthRoutes(s.Router, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down finance api")
	s.Shutdown()
	time.Sleep(100 * time.Millisecond)
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
