package cluster

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo"
	"github.com/hamed0406/uptimechecker/internal/ring"
)

// EventKind distinguishes an ownership gain from an ownership loss.
type EventKind int

const (
	CheckAdded EventKind = iota
	CheckRemoved
)

// OwnershipEvent is emitted to the scheduler whenever this node's owned-check
// set changes, down a one-way event channel.
type OwnershipEvent struct {
	Kind  EventKind
	Check domain.Check // only CheckID is meaningful on CheckRemoved
}

// RangeManager re-derives this node's owned-check set whenever the ring view
// changes or a check's own configuration is re-scanned, and emits the delta.
type RangeManager struct {
	NodeID uuid.UUID
	Region domain.Region
	Checks repo.CheckStore
	Log    *zap.Logger

	events chan OwnershipEvent
	owned  map[uuid.UUID]domain.Check
}

func NewRangeManager(nodeID uuid.UUID, region domain.Region, checks repo.CheckStore, log *zap.Logger) *RangeManager {
	return &RangeManager{
		NodeID: nodeID,
		Region: region,
		Checks: checks,
		Log:    log,
		events: make(chan OwnershipEvent, 256),
		owned:  make(map[uuid.UUID]domain.Check),
	}
}

func servesRegion(c domain.Check, region domain.Region) bool {
	for _, r := range c.Regions {
		if r == region {
			return true
		}
	}
	return false
}

// Events returns the channel the scheduler consumes +check/-check events
// from.
func (m *RangeManager) Events() <-chan OwnershipEvent { return m.events }

// Run reconciles on every incoming RingView until views closes or ctx is
// cancelled.
func (m *RangeManager) Run(ctx context.Context, views <-chan domain.RingView) {
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			m.reconcile(ctx, view)
		}
	}
}

func (m *RangeManager) reconcile(ctx context.Context, view domain.RingView) {
	checks, err := m.Checks.ListEnabled(ctx)
	if err != nil {
		// Keep the previous owned set; the range manager never aborts on a
		// store read failure.
		m.Log.Warn("range_manager_list_error", zap.Error(err))
		return
	}

	next := make(map[uuid.UUID]domain.Check, len(m.owned))
	for _, c := range checks {
		if !c.Valid() {
			m.Log.Warn("range_manager_invalid_check_skipped", zap.String("check_id", c.CheckID.String()))
			continue
		}
		if !servesRegion(c, m.Region) {
			continue
		}
		owners := ring.Assign(view, c.CheckID)
		for _, o := range owners {
			if o == m.NodeID {
				next[c.CheckID] = c
				break
			}
		}
	}

	for id, c := range next {
		if _, already := m.owned[id]; !already {
			m.emit(OwnershipEvent{Kind: CheckAdded, Check: c})
		}
	}
	for id, c := range m.owned {
		if _, stillOwned := next[id]; !stillOwned {
			m.emit(OwnershipEvent{Kind: CheckRemoved, Check: c})
		}
	}
	m.owned = next
}

func (m *RangeManager) emit(ev OwnershipEvent) {
	select {
	case m.events <- ev:
	default:
		m.Log.Warn("range_manager_event_dropped", zap.String("check_id", ev.Check.CheckID.String()))
	}
}
