package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/mines-leaderboard-go/internal/audit"
	"github.com/kapu/mines-leaderboard-go/internal/authtoken"
	"github.com/kapu/mines-leaderboard-go/internal/behavior"
	"github.com/kapu/mines-leaderboard-go/internal/cache"
	appcfg "github.com/kapu/mines-leaderboard-go/internal/config"
	"github.com/kapu/mines-leaderboard-go/internal/httpapi"
	"github.com/kapu/mines-leaderboard-go/internal/kvstore"
	"github.com/kapu/mines-leaderboard-go/internal/leaderboard"
	"github.com/kapu/mines-leaderboard-go/internal/obslog"
	"github.com/kapu/mines-leaderboard-go/internal/ratelimit"
	"github.com/kapu/mines-leaderboard-go/internal/taskpool"
	"github.com/kapu/mines-leaderboard-go/internal/validate"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(opts)

	local := cache.New()
	defer local.Stop()
	kv := kvstore.New(rdb, local, time.Duration(cfg.CacheTTLSec)*time.Second)

	limiter := ratelimit.New(kv, ratelimit.Ceilings{
		IP:          cfg.RateLimitIPPerMin,
		Fingerprint: cfg.RateLimitFPPerMin,
		Global:      cfg.RateLimitGlobalPerMin,
	})
	validator := validate.New(taskpool.New(cfg.ValidatorWorkers))
	analyzer := behavior.New(kv,
		time.Duration(cfg.BehaviorCooldownSec)*time.Second,
		cfg.BehaviorBlockThreshold,
		cfg.FlagSuddenImprovement,
	)
	board := leaderboard.New(kv, cfg.LeaderboardSize)
	auth := authtoken.New(kv, cfg.AdminSecret)

	auditRepo, err := audit.NewRepository(cfg.DatabaseURL)
	if err != nil {
		// The audit trail is optional; run degraded rather than refusing to start.
		logger.Warn("audit repository unavailable", zap.Error(err))
		auditRepo = nil
	}

	srv := httpapi.New(cfg, httpapi.Deps{
		KV:        kv,
		Limiter:   limiter,
		Validator: validator,
		Analyzer:  analyzer,
		Board:     board,
		Auth:      auth,
		Audit:     auditRepo,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = auditRepo.Close()
	_ = rdb.Close()
	logger.Info("shutdown complete")
}
