// Package cluster implements membership and failure detection: the
// heartbeat service (component C) and the range manager (component E) that
// projects membership onto this node's owned-check set.
package cluster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/clock"
	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo"
)

// State is this node's membership state machine.
type State int

const (
	Joining State = iota
	Live
	Suspect
	Dead
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Live:
		return "live"
	case Suspect:
		return "suspect"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Heartbeater is the single long-lived task per process that writes this
// node's liveness row and republishes the derived RingView to subscribers.
type Heartbeater struct {
	NodeID            uuid.UUID
	Region            domain.Region
	BucketsCount      int32
	ReplicationFactor int32
	BucketVersion     int16
	Interval          time.Duration
	GitSHA            string

	Store repo.HeartbeatStore
	Clock clock.Clock
	Log   *zap.Logger

	views chan domain.RingView

	mu          sync.RWMutex
	state       State
	lastView    domain.RingView
	consecFails int
}

// NewHeartbeater wires a heartbeat service with all of its collaborators
// explicit, via constructor injection.
func NewHeartbeater(nodeID uuid.UUID, region domain.Region, bucketsCount, replicationFactor int32, bucketVersion int16, interval time.Duration, gitSHA string, store repo.HeartbeatStore, clk clock.Clock, log *zap.Logger) *Heartbeater {
	return &Heartbeater{
		NodeID:            nodeID,
		Region:            region,
		BucketsCount:      bucketsCount,
		ReplicationFactor: replicationFactor,
		BucketVersion:     bucketVersion,
		Interval:          interval,
		GitSHA:            gitSHA,
		Store:             store,
		Clock:             clk,
		Log:               log,
		views:             make(chan domain.RingView, 1),
		state:             Joining,
	}
}

// Views returns the channel on which fresh RingView snapshots are
// published. Only the most recent view is ever buffered: a slow subscriber
// reads a later view rather than backing up stale ones.
func (h *Heartbeater) Views() <-chan domain.RingView { return h.views }

// State reports the node's current membership state.
func (h *Heartbeater) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Run ticks every Interval until ctx is cancelled, writing this node's own
// heartbeat and then republishing the live set.
func (h *Heartbeater) Run(ctx context.Context) {
	t := time.NewTicker(h.Interval)
	defer t.Stop()

	h.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			h.Log.Info("heartbeater_stopped")
			return
		case <-t.C:
			h.tick(ctx)
		}
	}
}

func (h *Heartbeater) tick(ctx context.Context) {
	now := h.Clock.NowMicros()
	hb := domain.Heartbeat{
		NodeID:            h.NodeID,
		Region:            h.Region,
		LastSeenMicros:    now,
		BucketVersion:     h.BucketVersion,
		BucketsCount:      h.BucketsCount,
		ReplicationFactor: h.ReplicationFactor,
		GitSHA:            h.GitSHA,
	}

	if err := h.Store.UpsertHeartbeat(ctx, hb); err != nil {
		h.onSelfWriteFailure(err)
	} else {
		h.onSelfWriteSuccess()
	}

	threshold := uint64(3 * h.Interval.Microseconds())
	peers, err := h.Store.ListLiveHeartbeats(ctx, now, threshold)
	if err != nil {
		h.Log.Warn("heartbeat_list_error", zap.Error(err))
		h.publishLastView()
		return
	}

	live := make([]uuid.UUID, 0, len(peers))
	for _, p := range peers {
		if p.BucketVersion != h.BucketVersion {
			// A heartbeat from a different major bucket version cannot
			// participate in this node's ring.
			continue
		}
		live = append(live, p.NodeID)
	}
	sort.Slice(live, func(i, j int) bool { return live[i].String() < live[j].String() })

	view := domain.RingView{
		LiveNodes:         live,
		BucketsCount:      h.BucketsCount,
		ReplicationFactor: h.ReplicationFactor,
		BucketVersion:     h.BucketVersion,
	}
	h.mu.Lock()
	h.lastView = view
	h.mu.Unlock()

	select {
	case h.views <- view:
	default:
		// drain the stale buffered view, then push the fresh one
		select {
		case <-h.views:
		default:
		}
		h.views <- view
	}
}

func (h *Heartbeater) publishLastView() {
	h.mu.RLock()
	view := h.lastView
	h.mu.RUnlock()
	select {
	case h.views <- view:
	default:
	}
}

func (h *Heartbeater) onSelfWriteSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecFails = 0
	if h.state != Live {
		h.Log.Info("heartbeat_state_change", zap.String("from", h.state.String()), zap.String("to", "live"))
	}
	h.state = Live
}

func (h *Heartbeater) onSelfWriteFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecFails++
	prev := h.state
	switch {
	case h.consecFails >= 3:
		h.state = Dead
	case h.consecFails >= 1 && h.state == Live:
		h.state = Suspect
	}
	h.Log.Warn("heartbeat_write_failed",
		zap.Error(err),
		zap.Int("consecutive_failures", h.consecFails),
		zap.String("state", h.state.String()),
	)
	if prev != h.state {
		h.Log.Warn("heartbeat_state_change", zap.String("from", prev.String()), zap.String("to", h.state.String()))
	}
}

// LastView returns the most recently computed RingView, for operator
// debugging; it is never read by the range manager, which only consumes
// Views().
func (h *Heartbeater) LastView() domain.RingView {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastView
}

// SelfFenced reports whether the probe executor must refuse new probes.
func (h *Heartbeater) SelfFenced() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state == Dead
}
