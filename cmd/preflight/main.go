// cmd/preflight validates the environment a probe node is about to start
// with, then runs a short dry cycle against an in-memory store to confirm
// ring assignment and scheduling actually produce a probe before the
// process is trusted with a real database connection.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/clock"
	"github.com/hamed0406/uptimechecker/internal/cluster"
	"github.com/hamed0406/uptimechecker/internal/config"
	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo/memory"
	"github.com/hamed0406/uptimechecker/internal/scheduler"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "FAIL:", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "WARN:", msg) }
	ok := func(msg string) { fmt.Println("OK:", msg) }

	cfg := config.FromEnv()

	if !cfg.Region.Valid() {
		fail(fmt.Sprintf("REGION=%q is not one of %v", cfg.Region, domain.Regions()))
	}
	ok("REGION=" + string(cfg.Region))

	if cfg.ReplicationFactor < 1 {
		fail("REPLICATION_FACTOR must be >= 1")
	}
	if cfg.CurrentBucketsCount < int32(cfg.ReplicationFactor) {
		warn("CURRENT_BUCKETS_COUNT is smaller than REPLICATION_FACTOR; every bucket will alias the same small node set")
	}
	ok(fmt.Sprintf("ring params buckets=%d replication=%d version=%d", cfg.CurrentBucketsCount, cfg.ReplicationFactor, cfg.CurrentBucketVersion))

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		warn("DATABASE_NODE_URLS is empty; the node will run against an in-memory store")
	} else {
		ok("DATABASE_NODE_URLS present")
	}

	if strings.TrimSpace(cfg.SelfIP) == "" {
		warn("SELF_IP is empty; the SSRF guard cannot fence off this node's own address")
	} else {
		ok("SELF_IP=" + cfg.SelfIP)
	}

	if err := dryRun(cfg); err != nil {
		fail("dry run: " + err.Error())
	}
	ok("dry run assigned, scheduled and dispatched a synthetic check")

	ok("preflight passed")
}

// dryRun wires a single-node cluster end to end against an in-memory store
// and a synthetic always-enabled check, and confirms the scheduler actually
// dispatches a probe for it within a few ticks.
func dryRun(cfg config.Config) error {
	log := zap.NewNop()
	store := memory.New()
	nodeID := uuid.New()
	fc := clock.NewFake(0)

	check := domain.Check{
		CheckID:            uuid.New(),
		Name:               "preflight-synthetic-check",
		URL:                "https://example.invalid/health",
		HTTPMethod:         domain.MethodGET,
		ExpectedStatusCode: 200,
		TimeoutSeconds:     5,
		CheckFrequencySecs: 60,
		Regions:            []domain.Region{cfg.Region},
		IsEnabled:          true,
	}
	store.PutCheck(check)

	rm := cluster.NewRangeManager(nodeID, cfg.Region, store, log)
	rm.Run(context.Background(), closedAfterOne(domain.RingView{
		LiveNodes:         []uuid.UUID{nodeID},
		BucketsCount:      cfg.CurrentBucketsCount,
		ReplicationFactor: cfg.ReplicationFactor,
		BucketVersion:     cfg.CurrentBucketVersion,
	}))

	probed := make(chan struct{}, 1)
	sched := scheduler.New(fc, log, 1, time.Millisecond, func(_ context.Context, c domain.Check, _ uint64) {
		if c.CheckID == check.CheckID {
			select {
			case probed <- struct{}{}:
			default:
			}
		}
	})

	select {
	case ev := <-rm.Events():
		sched.AddCheck(ev.Check)
	default:
		return fmt.Errorf("range manager produced no ownership event for the synthetic check")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go sched.Run(ctx, nil, 0)

	fc.Advance(61 * time.Second)
	select {
	case <-probed:
		return nil
	case <-time.After(time.Second):
		return fmt.Errorf("scheduler never dispatched the synthetic check")
	}
}

// closedAfterOne returns a channel that delivers v once, then is closed.
func closedAfterOne(v domain.RingView) <-chan domain.RingView {
	ch := make(chan domain.RingView, 1)
	ch <- v
	close(ch)
	return ch
}
