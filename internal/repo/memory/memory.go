// Package memory is an in-process fake of repo.Store, used by every
// non-integration test in this module and by the preflight dry-run binary.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/repo"
)

var errCheckNotFound = errors.New("check not found")

type Store struct {
	mu         sync.RWMutex
	checks     map[uuid.UUID]domain.Check
	heartbeats map[uuid.UUID]domain.Heartbeat
	results    []domain.CheckResult
}

func New() *Store {
	return &Store{
		checks:     make(map[uuid.UUID]domain.Check),
		heartbeats: make(map[uuid.UUID]domain.Heartbeat),
		results:    make([]domain.CheckResult, 0, 128),
	}
}

var _ repo.Store = (*Store)(nil)

// PutCheck inserts or replaces a check's configuration. Not part of the
// repo.CheckStore port — this is the fake's own seeding API, mirroring how
// callers seed checks directly without going through the store port.
func (s *Store) PutCheck(c domain.Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[c.CheckID] = c
}

func (s *Store) ListEnabled(ctx context.Context) ([]domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Check, 0, len(s.checks))
	for _, c := range s.checks {
		if c.IsEnabled {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID.String() < out[j].CheckID.String() })
	return out, nil
}

func (s *Store) GetCheck(ctx context.Context, id uuid.UUID) (*domain.Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.checks[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) CreateCheck(ctx context.Context, c domain.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[c.CheckID] = c
	return nil
}

func (s *Store) UpdateCheck(ctx context.Context, c domain.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checks[c.CheckID]; !ok {
		return &repo.StoreError{Kind: repo.Malformed, Op: "update_check", Err: errCheckNotFound}
	}
	s.checks[c.CheckID] = c
	return nil
}

func (s *Store) DeleteCheck(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checks, id)
	return nil
}

func (s *Store) UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats[hb.NodeID] = hb
	return nil
}

func (s *Store) ListLiveHeartbeats(ctx context.Context, nowMicros, thresholdMicros uint64) ([]domain.Heartbeat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Heartbeat, 0, len(s.heartbeats))
	for _, hb := range s.heartbeats {
		if nowMicros-hb.LastSeenMicros <= thresholdMicros {
			out = append(out, hb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID.String() < out[j].NodeID.String() })
	return out, nil
}

func (s *Store) AppendResult(ctx context.Context, row domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.results {
		if existing.CheckID == row.CheckID && existing.Region == row.Region && existing.ScheduledAtMicros == row.ScheduledAtMicros {
			return nil
		}
	}
	s.results = append(s.results, row)
	return nil
}

func (s *Store) ListResults(ctx context.Context, checkID uuid.UUID, fromMicros, toMicros uint64) ([]domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CheckResult, 0)
	for _, r := range s.results {
		if r.CheckID != checkID {
			continue
		}
		if r.ScheduledAtMicros < fromMicros || r.ScheduledAtMicros >= toMicros {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAtMicros < out[j].ScheduledAtMicros })
	return out, nil
}
