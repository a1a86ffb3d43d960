// cmd/api is one probe node: it joins the cluster, claims a share of the
// check space, runs the scheduler and probe executor, and serves the
// node's thin operational HTTP surface.
package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/clock"
	"github.com/hamed0406/uptimechecker/internal/cluster"
	"github.com/hamed0406/uptimechecker/internal/config"
	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/httpapi"
	"github.com/hamed0406/uptimechecker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimechecker/internal/logging"
	"github.com/hamed0406/uptimechecker/internal/probe"
	"github.com/hamed0406/uptimechecker/internal/repo"
	"github.com/hamed0406/uptimechecker/internal/repo/memory"
	"github.com/hamed0406/uptimechecker/internal/repo/postgres"
	"github.com/hamed0406/uptimechecker/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store repo.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pg.Close()
		store = pg
	} else {
		logger.Warn("database_url_unset_using_memory_store")
		store = memory.New()
	}

	nodeID := uuid.New()
	realClock := clock.NewReal()

	heartbeater := cluster.NewHeartbeater(
		nodeID, cfg.Region, cfg.CurrentBucketsCount, cfg.ReplicationFactor,
		cfg.CurrentBucketVersion, cfg.HeartbeatInterval, buildSHA, store, realClock, logger,
	)
	rangeManager := cluster.NewRangeManager(nodeID, cfg.Region, store, logger)
	executor := probe.NewExecutor(nodeID, cfg.SelfIP, logger)

	droppedWrites := expvar.NewInt("dropped_result_writes")
	skippedChecks := expvar.NewInt("skipped_checks")

	sched := scheduler.New(realClock, logger, cfg.MaxConcurrentHealthChecks, time.Second,
		func(ctx context.Context, check domain.Check, scheduledAtMicros uint64) {
			if heartbeater.SelfFenced() {
				skippedChecks.Add(1)
				return
			}
			result := executor.Execute(ctx, check, cfg.Region, scheduledAtMicros, realClock)
			if err := store.AppendResult(ctx, result); err != nil {
				droppedWrites.Add(1)
				logger.Warn("result_write_dropped", zap.String("check_id", check.CheckID.String()), zap.Error(err))
			}
		},
	)

	go heartbeater.Run(ctx)
	go rangeManager.Run(ctx, heartbeater.Views())
	go sched.Run(ctx, rangeManager.Events(), 2*time.Duration(maxTimeoutSeconds(cfg.RetryAttempts))*time.Second)

	api := httpapi.NewServer(logger, heartbeater, nodeID.String(), string(cfg.Region), droppedWrites, skippedChecks)
	keys := middleware.Keys{} // no admin keys configured: /debug/ring is open for local operation

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router(keys)}
	logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("node_id", nodeID.String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api_listen_failed", zap.Error(err))
	}
}

func maxTimeoutSeconds(retryAttempts int) int {
	if retryAttempts < 15 {
		return 15
	}
	return retryAttempts
}

// buildSHA is overridden at build time via -ldflags "-X main.buildSHA=...";
// it travels in every heartbeat row so operators can spot a mixed-version
// rollout at a glance.
var buildSHA = "unknown"
