package facade

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimechecker/internal/domain"
	"github.com/hamed0406/uptimechecker/internal/metrics"
	"github.com/hamed0406/uptimechecker/internal/repo/memory"
)

func validCheck() domain.Check {
	return domain.Check{
		CheckID:            uuid.New(),
		Name:                "example",
		URL:                 "https://example.com/health",
		HTTPMethod:          domain.MethodGET,
		ExpectedStatusCode:  200,
		TimeoutSeconds:      5,
		CheckFrequencySecs:  60,
		Regions:             []domain.Region{domain.RegionFsn1},
		IsEnabled:           true,
	}
}

func TestFacade_CreateListGetDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := New(store, metrics.New(store))

	c := validCheck()
	if err := f.CreateCheck(ctx, c); err != nil {
		t.Fatalf("CreateCheck: %v", err)
	}

	got, err := f.GetCheck(ctx, c.CheckID)
	if err != nil || got == nil {
		t.Fatalf("GetCheck: %v, %+v", err, got)
	}

	list, err := f.ListChecks(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListChecks: %v, %d entries", err, len(list))
	}

	if err := f.DeleteCheck(ctx, c.CheckID); err != nil {
		t.Fatalf("DeleteCheck: %v", err)
	}
	got, err = f.GetCheck(ctx, c.CheckID)
	if err != nil || got != nil {
		t.Fatalf("expected deleted check to be gone, got %+v (err %v)", got, err)
	}
}

func TestFacade_CreateCheckRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := New(store, metrics.New(store))

	bad := validCheck()
	bad.CheckFrequencySecs = 1 // below the 10s floor

	if err := f.CreateCheck(ctx, bad); err == nil {
		t.Fatalf("expected an error for an invalid check")
	}
}

func TestFacade_GetMetricsForwardsToAggregator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	f := New(store, metrics.New(store))

	checkID := uuid.New()
	got, err := f.GetMetrics(ctx, checkID, []domain.Region{domain.RegionFsn1}, 0, 1000)
	if err != nil {
		t.Fatalf("GetMetrics: %v", err)
	}
	if got.UptimePercent != nil {
		t.Fatalf("expected nil uptime_percent for no rows, got %v", *got.UptimePercent)
	}
}
