// Package repo defines the ports the probing engine uses to reach the shared
// store, so any concrete adapter (postgres, in-memory) can be swapped in.
package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimechecker/internal/domain"
)

// ErrorKind classifies a StoreError. Unavailable and Timeout are transient;
// Malformed is not retried by the postgres adapter.
type ErrorKind int

const (
	Unavailable ErrorKind = iota
	Timeout
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case Unavailable:
		return "unavailable"
	case Timeout:
		return "timeout"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// StoreError wraps every error a store adapter surfaces to its caller.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CheckStore lists, fetches, and manages check configuration. Create/Update/
// Delete exist for internal/facade's typed entry points; the range manager
// and scheduler only ever use ListEnabled/GetCheck.
type CheckStore interface {
	ListEnabled(ctx context.Context) ([]domain.Check, error)
	GetCheck(ctx context.Context, id uuid.UUID) (*domain.Check, error)
	CreateCheck(ctx context.Context, c domain.Check) error
	UpdateCheck(ctx context.Context, c domain.Check) error
	DeleteCheck(ctx context.Context, id uuid.UUID) error
}

// HeartbeatStore persists and reads back per-node liveness rows.
type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, hb domain.Heartbeat) error
	ListLiveHeartbeats(ctx context.Context, nowMicros, thresholdMicros uint64) ([]domain.Heartbeat, error)
}

// ResultStore appends probe outcomes and scans them back for aggregation.
type ResultStore interface {
	AppendResult(ctx context.Context, row domain.CheckResult) error
	ListResults(ctx context.Context, checkID uuid.UUID, fromMicros, toMicros uint64) ([]domain.CheckResult, error)
}

// Store bundles every port a fully wired node needs. Concrete adapters
// implement all three; tests compose whichever subset they need.
type Store interface {
	CheckStore
	HeartbeatStore
	ResultStore
}
