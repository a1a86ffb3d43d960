package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"os"

	"github.com/hamed0406/uptimechecker/internal/domain"
)

// Minimal schema so the test can run against a fresh DB/volume.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS checks (
  check_id                 UUID PRIMARY KEY,
  owner_user_id            UUID NOT NULL,
  check_name               TEXT NOT NULL,
  url                      TEXT NOT NULL,
  http_method              TEXT NOT NULL,
  request_headers          JSONB NOT NULL DEFAULT '{}',
  request_body             BYTEA,
  expected_status_code     INTEGER NOT NULL,
  timeout_seconds          INTEGER NOT NULL,
  check_frequency_seconds  INTEGER NOT NULL,
  regions                  TEXT[] NOT NULL,
  is_enabled               BOOLEAN NOT NULL,
  created_at_micros        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS heartbeats (
  node_id             UUID PRIMARY KEY,
  region              TEXT NOT NULL,
  last_seen_micros    BIGINT NOT NULL,
  bucket_version      SMALLINT NOT NULL,
  buckets_count       INTEGER NOT NULL,
  replication_factor  INTEGER NOT NULL,
  git_sha             TEXT,
  replica_label       TEXT
);

CREATE TABLE IF NOT EXISTS check_results (
  check_id              UUID NOT NULL,
  region                TEXT NOT NULL,
  time_bucket_micros    BIGINT NOT NULL,
  scheduled_at_micros   BIGINT NOT NULL,
  outcome               TEXT NOT NULL,
  response_time_micros  BIGINT NOT NULL,
  observed_status       INTEGER,
  executor_node_id      UUID NOT NULL,
  PRIMARY KEY (check_id, region, scheduled_at_micros)
);
`

func ensureSchema(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func TestPostgresStore_CheckAndResultRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ensureSchema(t, dsn)

	ctx := context.Background()
	log := zap.NewNop()

	store, err := New(ctx, dsn, log)
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	checkID := uuid.New()
	nodeID := uuid.New()

	_, execErr := store.pool.Exec(ctx, `
		INSERT INTO checks (check_id, owner_user_id, check_name, url, http_method,
		  request_headers, expected_status_code, timeout_seconds,
		  check_frequency_seconds, regions, is_enabled, created_at_micros)
		VALUES ($1,$2,$3,$4,$5,'{}',$6,$7,$8,$9,$10,$11)`,
		checkID, uuid.New(), "integration check", "https://example.com/health",
		string(domain.MethodGET), 200, 5, 60, []string{string(domain.RegionFsn1)}, true, int64(1_700_000_000_000_000))
	if execErr != nil {
		t.Fatalf("seed check: %v", execErr)
	}

	got, err := store.GetCheck(ctx, checkID)
	if err != nil {
		t.Fatalf("GetCheck: %v", err)
	}
	if got == nil || got.URL != "https://example.com/health" {
		t.Fatalf("unexpected check: %+v", got)
	}

	enabled, err := store.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	found := false
	for _, c := range enabled {
		if c.CheckID == checkID {
			found = true
		}
	}
	if !found {
		t.Fatalf("seeded check missing from ListEnabled")
	}

	hb := domain.Heartbeat{NodeID: nodeID, Region: domain.RegionFsn1, LastSeenMicros: 1_700_000_000_000_000, BucketsCount: 1024, ReplicationFactor: 2}
	if err := store.UpsertHeartbeat(ctx, hb); err != nil {
		t.Fatalf("UpsertHeartbeat: %v", err)
	}
	live, err := store.ListLiveHeartbeats(ctx, 1_700_000_000_000_000, 45_000_000)
	if err != nil {
		t.Fatalf("ListLiveHeartbeats: %v", err)
	}
	if len(live) != 1 || live[0].NodeID != nodeID {
		t.Fatalf("expected seeded heartbeat live, got %+v", live)
	}

	row := domain.CheckResult{
		CheckID:            checkID,
		Region:             domain.RegionFsn1,
		TimeBucketMicros:   domain.Align(1_700_000_000_000_000, domain.TimeBucketWidthMicros),
		ScheduledAtMicros:  1_700_000_000_000_000,
		Outcome:            domain.OutcomeOK,
		ResponseTimeMicros: 42_000,
		ExecutorNodeID:     nodeID,
	}
	if err := store.AppendResult(ctx, row); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}

	results, err := store.ListResults(ctx, checkID, 0, 2_000_000_000_000_000)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != domain.OutcomeOK {
		t.Fatalf("unexpected results: %+v", results)
	}

	created := domain.Check{
		CheckID:            uuid.New(),
		OwnerUserID:        uuid.New(),
		Name:               "created via CreateCheck",
		URL:                "https://example.com/created",
		HTTPMethod:         domain.MethodGET,
		ExpectedStatusCode: 200,
		TimeoutSeconds:     5,
		CheckFrequencySecs: 60,
		Regions:            []domain.Region{domain.RegionFsn1},
		IsEnabled:          true,
		CreatedAtMicros:    1_700_000_000_000_000,
	}
	if err := store.CreateCheck(ctx, created); err != nil {
		t.Fatalf("CreateCheck: %v", err)
	}
	got2, err := store.GetCheck(ctx, created.CheckID)
	if err != nil || got2 == nil || got2.URL != created.URL {
		t.Fatalf("expected created check to round-trip, got %+v (err %v)", got2, err)
	}

	created.Name = "renamed"
	if err := store.UpdateCheck(ctx, created); err != nil {
		t.Fatalf("UpdateCheck: %v", err)
	}
	got3, err := store.GetCheck(ctx, created.CheckID)
	if err != nil || got3 == nil || got3.Name != "renamed" {
		t.Fatalf("expected renamed check, got %+v (err %v)", got3, err)
	}

	if err := store.UpdateCheck(ctx, domain.Check{CheckID: uuid.New(), Name: "ghost"}); err == nil {
		t.Fatalf("expected an error updating a check that does not exist")
	}

	if err := store.DeleteCheck(ctx, created.CheckID); err != nil {
		t.Fatalf("DeleteCheck: %v", err)
	}
	if got4, err := store.GetCheck(ctx, created.CheckID); err != nil || got4 != nil {
		t.Fatalf("expected check gone after delete, got %+v (err %v)", got4, err)
	}
}
