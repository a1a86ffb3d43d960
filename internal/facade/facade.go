// Package facade implements the typed entry points for
// check CRUD and metrics reads, as plain constructor-injected Go functions.
// It is the seam an external HTTP CRUD server (out of scope here) calls
// into; access control and per-user visibility belong to that external
// layer, not here.
package facade

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/metrics"
	"github.com/hamed0406/uptimechecker/internal/repo"
)

// Facade bundles the store and aggregator collaborators the typed entry
// points need.
type Facade struct {
	Checks repo.CheckStore
	Agg    *metrics.Aggregator
}

func New(checks repo.CheckStore, agg *metrics.Aggregator) *Facade {
	return &Facade{Checks: checks, Agg: agg}
}

// ListChecks returns every enabled check. Filtering down to what one user
// may see is the caller's responsibility.
func (f *Facade) ListChecks(ctx context.Context) ([]domain.Check, error) {
	return f.Checks.ListEnabled(ctx)
}

// GetCheck returns the check, or nil if it does not exist.
func (f *Facade) GetCheck(ctx context.Context, id uuid.UUID) (*domain.Check, error) {
	return f.Checks.GetCheck(ctx, id)
}

// CreateCheck rejects a check that fails the invariants domain.Check.Valid
// enforces before it ever reaches the store.
func (f *Facade) CreateCheck(ctx context.Context, c domain.Check) error {
	if !c.Valid() {
		return fmt.Errorf("create_check: invalid check %s", c.CheckID)
	}
	return f.Checks.CreateCheck(ctx, c)
}

func (f *Facade) UpdateCheck(ctx context.Context, c domain.Check) error {
	if !c.Valid() {
		return fmt.Errorf("update_check: invalid check %s", c.CheckID)
	}
	return f.Checks.UpdateCheck(ctx, c)
}

func (f *Facade) DeleteCheck(ctx context.Context, id uuid.UUID) error {
	return f.Checks.DeleteCheck(ctx, id)
}

// GetMetrics and GetMetricsGraph simply forward to the aggregator; they
// exist here so the external façade has one collaborator (Facade) to call
// into rather than reaching into internal/metrics directly.
func (f *Facade) GetMetrics(ctx context.Context, checkID uuid.UUID, regions []domain.Region, fromMicros, toMicros uint64) (metrics.MetricsResponse, error) {
	return f.Agg.GetMetrics(ctx, checkID, regions, fromMicros, toMicros)
}

func (f *Facade) GetMetricsGraph(ctx context.Context, checkID uuid.UUID, regions []domain.Region, fromMicros, toMicros uint64, granularity metrics.Granularity) ([]metrics.GraphPoint, error) {
	return f.Agg.GetMetricsGraph(ctx, checkID, regions, fromMicros, toMicros, granularity)
}
