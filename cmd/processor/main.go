package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/majmadigital/finance-ledger/internal/config"
	"github.com/majmadigital/finance-ledger/internal/queue"
	"github.com/majmadigital/finance-ledger/internal/reconcile"
	"github.com/majmadigital/finance-ledger/internal/store"
	"github.com/majmadigital/finance-ledger/pkg/logger"
	"github.com/majmadigital/finance-ledger/pkg/prom"
	"github.com/majmadigital/finance-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.SetService(cfg.AppName + "-processor")
	logger.Info("starting ledger auditor", "version", version, "commit", commit, "date", date, "env", cfg.AppEnv)

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

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.Redis("ledger-auditor"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	consumer := cfg.QueueConsumerName
	if consumer == "" {
		consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	q, err := queue.New(ctx, redisAdap, queue.Config{
		Stream:       cfg.QueueName,
		Group:        cfg.QueueConsumerGroup,
		Consumer:     consumer,
		MaxAttempts:  cfg.QueueMaxRetries,
		ClaimAfter:   cfg.QueueClaimAfter,
		PollInterval: cfg.QueuePollInterval,
		BatchSize:    cfg.QueueBatchSize,
		MaxLen:       cfg.QueueMaxLen,
		DeadLetter:   cfg.QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating audit queue", "error", err)
		return
	}

	auditor := reconcile.NewAuditor(ledger.Members, ledger.Commissions, ledger.Contributions)
	service := reconcile.NewService(auditor, q, reconcile.Config{
		Interval: cfg.AuditInterval,
		Workers:  cfg.AuditWorkers,
		PageSize: cfg.AuditPageSize,
	})
	if err := service.Start(); err != nil {
		logger.Error("failed starting ledger auditor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	service.Stop(shutdownTimeout)
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
